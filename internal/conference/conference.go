package conference

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/treffen/confsync/internal/handler"
	"github.com/treffen/confsync/internal/settings"
	"github.com/treffen/confsync/internal/store"
)

// Document is one conference document ready to reconcile.
type Document struct {
	// Name identifies the document in logs and errors.
	Name string
	Data []byte

	// Bootstrap marks the bundled document. Its parse failure is fatal.
	Bootstrap bool
}

// Store is the part of the local store a cycle writes to.
type Store interface {
	handler.StoreReader
	ApplyBatch(ctx context.Context, batch store.Batch) (int, error)
}

// Change describes one applied cycle.
type Change struct {
	CycleID string

	// Sections lists the document sections that emitted mutations.
	Sections []string
	Rows     int
}

// Observer is notified after a cycle changed the store.
type Observer interface {
	DataChanged(ctx context.Context, c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Change)

func (f ObserverFunc) DataChanged(ctx context.Context, c Change) { f(ctx, c) }

// Options configures a DataHandler. Zero values pick the defaults.
type Options struct {
	Logger *slog.Logger
	IDs    IDGenerator
	Clock  Clock
}

// DataHandler reconciles conference documents into the store. Apply is not
// safe for concurrent use on the same store; callers serialize cycles.
type DataHandler struct {
	store  Store
	state  settings.Store
	logger *slog.Logger
	ids    IDGenerator
	clock  Clock

	mu        sync.Mutex
	observers []Observer
}

// New returns a DataHandler writing to st and persisting its digest in
// state.
func New(st Store, state settings.Store, opts Options) *DataHandler {
	h := &DataHandler{
		store:  st,
		state:  state,
		logger: opts.Logger,
		ids:    opts.IDs,
		clock:  opts.Clock,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.ids == nil {
		h.ids = UUIDv7Generator{}
	}
	if h.clock == nil {
		h.clock = systemClock{}
	}
	return h
}

// Observe registers o for change notifications.
func (h *DataHandler) Observe(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, o)
}

// Result describes a finished cycle.
type Result struct {
	CycleID string
	Digest  string

	// Changed is false when the digest matched and nothing was written.
	Changed   bool
	Mutations int
	Rows      int
	Sections  []string

	// Skipped lists supplementary documents dropped for parse errors.
	Skipped []string
}

// Apply runs one reconciliation cycle over docs, ordered lowest priority
// first. dataTimestamp is the feed's version stamp and is persisted with
// the digest.
//
// Canceling ctx before the batch commits aborts the cycle with no effect.
// Canceling it after the commit keeps the rows but skips persisting the
// digest, so the next cycle applies again.
func (h *DataHandler) Apply(ctx context.Context, docs []Document, dataTimestamp string) (Result, error) {
	cycle := h.ids.Generate()
	log := h.logger.With("cycle", cycle)
	res := Result{CycleID: cycle}

	if len(docs) == 0 {
		return res, &ApplyError{Code: ErrCodeNoDocuments, CycleID: cycle, Err: errors.New("no documents")}
	}

	merged := handler.NewSet(log)
	parsed := 0
	for _, doc := range docs {
		staging := handler.NewSet(log)
		sections, err := staging.ParseDocument(doc.Data)
		if err != nil {
			if doc.Bootstrap || len(docs) == 1 {
				log.Error("required document failed to parse", "document", doc.Name, "error", err)
				return res, &ApplyError{Code: ErrCodeParse, CycleID: cycle, Document: doc.Name, Err: err}
			}
			log.Warn("skipping document", "document", doc.Name, "error", err)
			res.Skipped = append(res.Skipped, doc.Name)
			continue
		}
		log.Debug("parsed document", "document", doc.Name, "sections", sections)
		merged.Merge(staging)
		parsed++
	}
	if parsed == 0 {
		return res, &ApplyError{Code: ErrCodeNoUsableData, CycleID: cycle, Err: errors.New("every document failed to parse")}
	}

	digest, err := merged.Digest()
	if err != nil {
		return res, &ApplyError{Code: ErrCodeEmit, CycleID: cycle, Err: err}
	}
	res.Digest = digest

	prev, err := h.state.Load(ctx)
	if err != nil {
		return res, &ApplyError{Code: ErrCodeState, CycleID: cycle, Err: err}
	}
	if prev.Digest == digest {
		log.Info("conference data unchanged", "digest", digest)
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return res, &ApplyError{Code: ErrCodeCanceled, CycleID: cycle, Err: err}
	}

	now := h.clock.Now()
	em, err := merged.Mutations(ctx, h.store, handler.EmitOptions{
		Updated: now.UnixMilli(),
		Rewrite: prev.Digest == "",
	})
	if err != nil {
		return res, &ApplyError{Code: ErrCodeEmit, CycleID: cycle, Err: err}
	}

	rows, err := h.store.ApplyBatch(ctx, em.Batch)
	if err != nil {
		if ctx.Err() != nil {
			return res, &ApplyError{Code: ErrCodeCanceled, CycleID: cycle, Err: err}
		}
		log.Error("mutation batch failed", "mutations", len(em.Batch), "error", err)
		return res, &ApplyError{Code: ErrCodeApply, CycleID: cycle, Err: err}
	}
	res.Changed = true
	res.Mutations = len(em.Batch)
	res.Rows = rows
	res.Sections = em.Touched

	if err := ctx.Err(); err != nil {
		log.Warn("cycle canceled after commit, digest not persisted", "error", err)
		return res, &ApplyError{Code: ErrCodeCanceled, CycleID: cycle, Err: err}
	}

	// Invalidation cancels the cycle before it resets the digest under the
	// state lock, so a cycle canceled by the time it holds the lock must not
	// write over the reset.
	var late error
	err = h.state.Update(ctx, func(st *settings.State) {
		if late = ctx.Err(); late != nil {
			return
		}
		st.Digest = digest
		st.DataTimestamp = dataTimestamp
		st.LastSync = now
	})
	if err == nil {
		err = late
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("cycle canceled after commit, digest not persisted", "error", err)
			return res, &ApplyError{Code: ErrCodeCanceled, CycleID: cycle, Err: err}
		}
		return res, &ApplyError{Code: ErrCodeState, CycleID: cycle, Err: err}
	}

	log.Info("applied conference data",
		"digest", digest, "mutations", res.Mutations, "rows", rows, "sections", res.Sections)
	h.notify(ctx, Change{CycleID: cycle, Sections: res.Sections, Rows: rows})
	return res, nil
}

func (h *DataHandler) notify(ctx context.Context, c Change) {
	h.mu.Lock()
	observers := append([]Observer(nil), h.observers...)
	h.mu.Unlock()

	for _, o := range observers {
		o.DataChanged(ctx, c)
	}
}
