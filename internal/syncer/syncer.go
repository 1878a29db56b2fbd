// Package syncer decides when reconciliation cycles run. It fetches the
// feed, hands the documents to the conference data handler, keeps at most
// one cycle in flight, and reruns after invalidation or account changes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/treffen/confsync/internal/conference"
	"github.com/treffen/confsync/internal/feed"
	"github.com/treffen/confsync/internal/settings"
	"github.com/treffen/confsync/internal/store"
)

// Applier runs one reconciliation cycle.
type Applier interface {
	Apply(ctx context.Context, docs []conference.Document, dataTimestamp string) (conference.Result, error)
}

// Store is the part of the local store the syncer drives directly.
type Store interface {
	UpdateSearchIndex(ctx context.Context) (int, error)
	ReassignAccount(ctx context.Context, from, to string) (store.TransitionResult, error)
}

// Outcome summarizes a sync attempt.
type Outcome int

const (
	// OutcomeApplied means the store changed.
	OutcomeApplied Outcome = iota
	// OutcomeUnchanged means the feed matched the applied data.
	OutcomeUnchanged
	// OutcomeSkipped means another cycle was in flight.
	OutcomeSkipped
	// OutcomeDiscarded means the cycle was invalidated while running.
	OutcomeDiscarded
	// OutcomeFailed means the cycle failed and the store is unchanged.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Options configures a Syncer. Zero values pick the defaults.
type Options struct {
	Logger *slog.Logger

	// Interval triggers periodic syncs in Run. Zero disables them.
	Interval time.Duration
}

// Syncer serializes reconciliation cycles for one store.
type Syncer struct {
	fetcher feed.Fetcher
	applier Applier
	store   Store
	state   settings.Store
	logger  *slog.Logger
	every   time.Duration

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	generation uint64
	base       []conference.Document

	requests chan struct{}
}

// New returns a Syncer.
func New(fetcher feed.Fetcher, applier Applier, st Store, state settings.Store, opts Options) *Syncer {
	s := &Syncer{
		fetcher:  fetcher,
		applier:  applier,
		store:    st,
		state:    state,
		logger:   opts.Logger,
		every:    opts.Interval,
		requests: make(chan struct{}, 1),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// SetBase sets documents applied beneath every fetched feed, usually the
// bootstrap document.
func (s *Syncer) SetBase(docs ...conference.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = docs
}

// begin claims the in-flight slot. It returns false when a cycle already
// runs.
func (s *Syncer) begin(ctx context.Context) (context.Context, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, 0, false
	}
	cctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	return cctx, s.generation, true
}

func (s *Syncer) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.cancel = nil
}

func (s *Syncer) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

// Sync fetches the feed and reconciles it. A call made while another cycle
// runs returns OutcomeSkipped immediately; it is neither queued nor run in
// parallel.
func (s *Syncer) Sync(ctx context.Context) (Outcome, error) {
	cctx, gen, ok := s.begin(ctx)
	if !ok {
		s.logger.Info("sync already in flight, ignoring request")
		return OutcomeSkipped, nil
	}
	defer s.end()

	snap, err := s.fetcher.Fetch(cctx)
	if err != nil {
		if s.stale(gen) {
			return OutcomeDiscarded, nil
		}
		return OutcomeFailed, fmt.Errorf("sync: %w", err)
	}

	s.mu.Lock()
	docs := append([]conference.Document(nil), s.base...)
	s.mu.Unlock()
	for _, f := range snap.Files {
		docs = append(docs, conference.Document{Name: f.Name, Data: f.Data, Bootstrap: f.Bootstrap})
	}

	res, err := s.applier.Apply(cctx, docs, snap.Version)
	if s.stale(gen) {
		s.logger.Warn("sync invalidated while running, result discarded", "cycle", res.CycleID)
		return OutcomeDiscarded, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("sync: %w", err)
	}
	if !res.Changed {
		return OutcomeUnchanged, nil
	}
	if err := s.postSync(cctx); err != nil {
		return OutcomeApplied, err
	}
	return OutcomeApplied, nil
}

// postSync runs the chores deferred out of the mutation batch.
func (s *Syncer) postSync(ctx context.Context) error {
	n, err := s.store.UpdateSearchIndex(ctx)
	if err != nil {
		return fmt.Errorf("update search index: %w", err)
	}
	s.logger.Debug("search index updated", "sessions", n)
	return nil
}

// Invalidate forgets the applied digest, discards any in-flight cycle and
// requests a fresh sync. Called after a schema upgrade invalidated the
// stored data.
func (s *Syncer) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if err := s.state.Update(ctx, func(st *settings.State) { st.Invalidate() }); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}
	s.logger.Info("conference data invalidated, requesting sync")
	s.RequestSync()
	return nil
}

// RequestSync asks Run for a sync. Requests made before Run consumes the
// previous one collapse into it.
func (s *Syncer) RequestSync() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Run serves sync requests until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.every > 0 {
		t := time.NewTicker(s.every)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.requests:
		case <-tick:
		}
		outcome, err := s.Sync(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("sync failed", "error", err)
			continue
		}
		s.logger.Info("sync finished", "outcome", outcome)
	}
}

// Bootstrap applies the bundled document on first run. It is marked done
// even when the document cannot be applied, and a sync is requested either
// way so the feed repairs whatever the bootstrap could not provide. The
// returned error is informational.
func (s *Syncer) Bootstrap(ctx context.Context, doc conference.Document, dataTimestamp string) error {
	st, err := s.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if st.BootstrapDone {
		s.logger.Debug("bootstrap already done")
		return nil
	}

	doc.Bootstrap = true
	applyErr := s.applyBootstrap(ctx, doc, dataTimestamp)
	if applyErr != nil {
		s.logger.Error("bootstrap failed, marking done anyway", "document", doc.Name, "error", applyErr)
	} else {
		s.SetBase(doc)
	}

	if err := s.state.Update(ctx, func(st *settings.State) { st.BootstrapDone = true }); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.RequestSync()
	if applyErr != nil {
		return fmt.Errorf("bootstrap: %w", applyErr)
	}
	return nil
}

func (s *Syncer) applyBootstrap(ctx context.Context, doc conference.Document, dataTimestamp string) error {
	cctx, _, ok := s.begin(ctx)
	if !ok {
		return errors.New("sync in flight")
	}
	defer s.end()

	res, err := s.applier.Apply(cctx, []conference.Document{doc}, dataTimestamp)
	if err != nil {
		return err
	}
	if res.Changed {
		return s.postSync(cctx)
	}
	return nil
}

// ReassignAccount moves user-scoped rows from the active account to
// account, records account as active, and requests a sync so the new
// account's server-side data is pulled.
func (s *Syncer) ReassignAccount(ctx context.Context, account string) (store.TransitionResult, error) {
	st, err := s.state.Load(ctx)
	if err != nil {
		return store.TransitionResult{}, fmt.Errorf("reassign account: %w", err)
	}

	res, err := s.store.ReassignAccount(ctx, st.Account, account)
	if err != nil {
		return store.TransitionResult{}, err
	}
	if err := s.state.Update(ctx, func(st *settings.State) { st.Account = account }); err != nil {
		return res, fmt.Errorf("reassign account: %w", err)
	}
	s.RequestSync()
	return res, nil
}
