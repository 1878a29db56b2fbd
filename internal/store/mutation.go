package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Entity names a mutable conference table.
type Entity string

const (
	EntityRoom           Entity = "rooms"
	EntityBlock          Entity = "blocks"
	EntityTag            Entity = "tags"
	EntitySpeaker        Entity = "speakers"
	EntitySession        Entity = "sessions"
	EntityVideo          Entity = "videos"
	EntityCard           Entity = "cards"
	EntityAnnouncement   Entity = "announcements"
	EntityMap            Entity = "mapgeojson"
	EntitySessionTag     Entity = "sessions_tags"
	EntitySessionSpeaker Entity = "sessions_speakers"
	EntityRelatedSession Entity = "related_sessions"
)

// Op is the kind of a mutation.
type Op int

const (
	// OpUpsert inserts the row or overwrites the one sharing its key.
	OpUpsert Op = iota
	// OpInsert inserts the row as is.
	OpInsert
	// OpDelete removes the row with the given key and its dependents.
	OpDelete
	// OpDeleteAll empties the table. Dependent rows are not touched; rows
	// still pointing at a key nobody reinserted fail the deferred foreign
	// key check at commit.
	OpDeleteAll
)

func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	case OpDeleteAll:
		return "delete-all"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Values maps column names to values.
type Values map[string]any

// Mutation is one typed change to the store.
//
// For join entities (sessions_tags, sessions_speakers, related_sessions)
// Key is the owning session id and OpDelete removes every row of that
// session.
type Mutation struct {
	Entity Entity
	Op     Op
	Key    string
	Values Values
}

// Batch is an ordered list of mutations applied atomically.
type Batch []Mutation

// dependent is a table holding rows keyed by another table's natural key.
type dependent struct {
	table  string
	column string
}

type tableSpec struct {
	table   string
	key     string
	columns []string

	// cascade lists rows removed together with a deleted key.
	cascade []dependent

	// join tables have no single-column natural key and accept inserts only.
	join bool
}

var sessionDependents = []dependent{
	{TableSessionsTags, "session_id"},
	{TableSessionsSpeakers, "session_id"},
	{TableRelatedSessions, "session_id"},
	{TableRelatedSessions, "related_session_id"},
	{TableMySchedule, "session_id"},
	{TableMyReservations, "session_id"},
	{TableMyFeedbackSubmitted, "session_id"},
	{TableFeedback, "session_id"},
	{TableSessionsSearch, "session_id"},
}

var specs = map[Entity]tableSpec{
	EntityRoom: {
		table: TableRooms, key: "room_id",
		columns: []string{"room_id", "room_name", "room_floor"},
	},
	EntityBlock: {
		table: TableBlocks, key: "block_id",
		columns: []string{"block_id", "block_title", "block_start", "block_end", "block_type", "block_subtitle", "block_kind"},
	},
	EntityTag: {
		table: TableTags, key: "tag_id",
		columns: []string{"tag_id", "tag_category", "tag_name", "tag_order_in_category", "tag_color", "tag_abstract", "tag_photo_url"},
		cascade: []dependent{{TableSessionsTags, "tag_id"}},
	},
	EntitySpeaker: {
		table: TableSpeakers, key: "speaker_id",
		columns: []string{"updated", "speaker_id", "speaker_name", "speaker_image_url", "speaker_company",
			"speaker_abstract", "speaker_url", "speaker_plusone_url", "speaker_twitter_url", "speaker_import_hashcode"},
		cascade: []dependent{{TableSessionsSpeakers, "speaker_id"}},
	},
	EntitySession: {
		table: TableSessions, key: "session_id",
		columns: []string{"updated", "session_id", "room_id", "session_start", "session_end", "session_title",
			"session_abstract", "session_hashtag", "session_url", "session_youtube_url", "session_livestream",
			"session_featured", "session_tags", "session_speaker_names", "session_import_hashcode",
			"session_main_tag", "session_color", "session_captions_url", "session_photo_url",
			"session_related_content"},
		cascade: sessionDependents,
	},
	EntityVideo: {
		table: TableVideos, key: "video_id",
		columns: []string{"video_id", "video_year", "video_title", "video_desc", "video_vid", "video_topic",
			"video_speakers", "video_thumbnail_url", "video_import_hashcode"},
		cascade: []dependent{{TableMyViewedVideos, "video_id"}},
	},
	EntityCard: {
		table: TableCards, key: "card_id",
		columns: []string{"card_id", "title", "message", "action_color", "action_text", "action_url",
			"action_type", "action_extra", "background_color", "text_color", "display_start_date", "display_end_date"},
	},
	EntityAnnouncement: {
		table: TableAnnouncements, key: "announcement_id",
		columns: []string{"updated", "announcement_id", "announcement_title", "announcement_activity_json",
			"announcement_url", "announcement_date"},
	},
	EntityMap: {
		table: TableMapGeoJSON, key: "overlay_id",
		columns: []string{"overlay_id", "geojson"},
	},
	EntitySessionTag: {
		table: TableSessionsTags, key: "session_id",
		columns: []string{"session_id", "tag_id"},
		join:    true,
	},
	EntitySessionSpeaker: {
		table: TableSessionsSpeakers, key: "session_id",
		columns: []string{"session_id", "speaker_id"},
		join:    true,
	},
	EntityRelatedSession: {
		table: TableRelatedSessions, key: "session_id",
		columns: []string{"session_id", "related_session_id"},
		join:    true,
	},
}

// ApplyBatch applies every mutation in one transaction and returns the
// number of rows affected. Either the whole batch commits or none of it
// does; concurrent readers never observe a partial batch.
func (s *Store) ApplyBatch(ctx context.Context, batch Batch) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply batch: begin: %w", err)
	}
	defer tx.Rollback()

	// Reference tables are emptied and refilled inside the batch, so
	// parent keys are briefly missing.
	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return 0, fmt.Errorf("apply batch: %w", err)
	}

	total := 0
	for i, m := range batch {
		n, err := applyMutation(ctx, tx, m)
		if err != nil {
			return 0, &BatchError{Index: i, Mutation: m, Err: err}
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("apply batch: commit: %w", err)
	}

	s.logger.Debug("applied batch", "mutations", len(batch), "rows", total)
	return total, nil
}

func applyMutation(ctx context.Context, q querier, m Mutation) (int, error) {
	spec, ok := specs[m.Entity]
	if !ok {
		return 0, fmt.Errorf("unknown entity %q", m.Entity)
	}

	switch m.Op {
	case OpUpsert, OpInsert:
		return writeRow(ctx, q, spec, m)
	case OpDelete:
		if m.Key == "" {
			return 0, fmt.Errorf("delete requires a key")
		}
		n := 0
		for _, dep := range spec.cascade {
			c, err := execCount(ctx, q,
				fmt.Sprintf("DELETE FROM %s WHERE %s = ?", dep.table, dep.column), m.Key)
			if err != nil {
				return 0, fmt.Errorf("cascade %s.%s: %w", dep.table, dep.column, err)
			}
			n += c
		}
		c, err := execCount(ctx, q, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", spec.table, spec.key), m.Key)
		return n + c, err
	case OpDeleteAll:
		return execCount(ctx, q, "DELETE FROM "+spec.table)
	default:
		return 0, fmt.Errorf("unknown op %d", int(m.Op))
	}
}

func writeRow(ctx context.Context, q querier, spec tableSpec, m Mutation) (int, error) {
	if m.Op == OpUpsert && spec.join {
		return 0, fmt.Errorf("upsert not supported on join table %s", spec.table)
	}

	values := make(Values, len(m.Values)+1)
	for col, v := range m.Values {
		values[col] = v
	}
	if _, set := values[spec.key]; !set && m.Key != "" {
		values[spec.key] = m.Key
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("no values")
	}

	cols := make([]string, 0, len(values))
	for col := range values {
		if !slices.Contains(spec.columns, col) {
			return 0, fmt.Errorf("unknown column %s.%s", spec.table, col)
		}
		cols = append(cols, col)
	}
	slices.Sort(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = values[col]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		spec.table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	if m.Op == OpUpsert {
		var sets []string
		for _, col := range cols {
			if col != spec.key {
				sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
			}
		}
		if len(sets) == 0 {
			fmt.Fprintf(&b, " ON CONFLICT(%s) DO NOTHING", spec.key)
		} else {
			fmt.Fprintf(&b, " ON CONFLICT(%s) DO UPDATE SET %s", spec.key, strings.Join(sets, ", "))
		}
	}

	return execCount(ctx, q, b.String(), args...)
}

func execCount(ctx context.Context, q querier, query string, args ...any) (int, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
