// Package schedule answers the schedule views a client renders: the full
// agenda, bookmarked sessions, the account's own schedule and text search.
// Every row is annotated for the active account.
package schedule

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/treffen/confsync/internal/settings"
	"github.com/treffen/confsync/internal/store"
)

// Reader is the part of the store schedule views read from.
type Reader interface {
	ScheduleRows(ctx context.Context, q store.ScheduleQuery) ([]store.ScheduleRow, error)
	SearchDocuments(ctx context.Context) ([]store.SearchDocument, error)
}

// Item is one row of a schedule view.
type Item struct {
	store.ScheduleRow

	// ConflictsWithPrevious is set on a bookmarked session that starts
	// before an earlier bookmarked session ends.
	ConflictsWithPrevious bool
}

// Helper loads schedule views for the active account.
type Helper struct {
	reader Reader
	state  settings.Store
	logger *slog.Logger
}

// NewHelper returns a Helper. A nil logger discards output.
func NewHelper(reader Reader, state settings.Store, logger *slog.Logger) *Helper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Helper{reader: reader, state: state, logger: logger}
}

// Load runs q for the active account.
func (h *Helper) Load(ctx context.Context, q Query) ([]Item, error) {
	st, err := h.state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	account := st.Account

	switch q := q.(type) {
	case AllItems:
		return h.window(ctx, store.ScheduleQuery{
			Account: account, Start: q.Start, End: q.End, ScheduledOnly: true,
		}, q.Filter)
	case StarredItems:
		return h.window(ctx, store.ScheduleQuery{
			Account: account, Start: q.Start, End: q.End, ScheduledOnly: true, StarredOnly: true,
		}, q.Filter)
	case MySchedule:
		rows, err := h.reader.ScheduleRows(ctx, store.ScheduleQuery{Account: account, StarredOnly: true})
		if err != nil {
			return nil, fmt.Errorf("load my schedule: %w", err)
		}
		return flagConflicts(rows), nil
	case Search:
		return h.search(ctx, account, q.Term)
	default:
		return nil, fmt.Errorf("load schedule: unknown query %T", q)
	}
}

func (h *Helper) window(ctx context.Context, sq store.ScheduleQuery, f Filter) ([]Item, error) {
	rows, err := h.reader.ScheduleRows(ctx, sq)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if !f.Empty() {
		rows = slices.DeleteFunc(rows, func(r store.ScheduleRow) bool { return !f.Matches(r.Tags) })
	}
	items := flagConflicts(rows)
	for i, it := range items {
		if it.ConflictsWithPrevious {
			h.logger.Debug("schedule item conflicts with previous",
				"session", it.SessionID, "previous", items[i-1].SessionID)
		}
	}
	return items, nil
}

// flagConflicts wraps rows, which must be ordered by start time, and marks
// bookmarked sessions overlapping an earlier bookmarked session.
func flagConflicts(rows []store.ScheduleRow) []Item {
	items := make([]Item, len(rows))
	var busyUntil int64
	for i, r := range rows {
		items[i] = Item{ScheduleRow: r}
		if !r.InSchedule || r.Start <= 0 {
			continue
		}
		if r.Start < busyUntil {
			items[i].ConflictsWithPrevious = true
		}
		busyUntil = max(busyUntil, r.End)
	}
	return items
}

func (h *Helper) search(ctx context.Context, account, term string) ([]Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	docs, err := h.reader.SearchDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	bodies := make([]string, len(docs))
	for i, d := range docs {
		bodies[i] = d.Body
	}

	ranks := fuzzy.RankFindNormalizedFold(term, bodies)
	slices.SortFunc(ranks, func(a, b fuzzy.Rank) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.OriginalIndex, b.OriginalIndex))
	})
	if len(ranks) == 0 {
		return nil, nil
	}

	ids := make([]string, len(ranks))
	order := make(map[string]int, len(ranks))
	for i, r := range ranks {
		id := docs[r.OriginalIndex].SessionID
		ids[i] = id
		order[id] = i
	}

	rows, err := h.reader.ScheduleRows(ctx, store.ScheduleQuery{Account: account, SessionIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	slices.SortFunc(rows, func(a, b store.ScheduleRow) int {
		return cmp.Compare(order[a.SessionID], order[b.SessionID])
	})

	items := make([]Item, len(rows))
	for i, r := range rows {
		items[i] = Item{ScheduleRow: r}
	}
	h.logger.Debug("search", "term", term, "matches", len(items))
	return items, nil
}
