package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/treffen/confsync/internal/model"
)

var hashColumns = map[Entity]string{
	EntitySession: "session_import_hashcode",
	EntitySpeaker: "speaker_import_hashcode",
	EntityVideo:   "video_import_hashcode",
}

// ImportHashes returns natural key -> stored import hash for an entity that
// tracks import hashes (sessions, speakers, videos).
func (s *Store) ImportHashes(ctx context.Context, entity Entity) (map[string]string, error) {
	col, ok := hashColumns[entity]
	if !ok {
		return nil, fmt.Errorf("import hashes: entity %q has no import hash", entity)
	}
	spec := specs[entity]

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, %s FROM %s", spec.key, col, spec.table))
	if err != nil {
		return nil, fmt.Errorf("import hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("import hashes: scan: %w", err)
		}
		hashes[key] = hash
	}
	return hashes, rows.Err()
}

// Count returns the number of rows in a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("count: unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// CountForSession returns the number of rows in table that reference
// sessionID.
func (s *Store) CountForSession(ctx context.Context, table, sessionID string) (int, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("count: unknown table %q", table)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+" WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s for session: %w", table, err)
	}
	return n, nil
}

func knownTable(table string) bool {
	switch table {
	case TableBlocks, TableTags, TableRooms, TableSessions, TableSpeakers, TableMySchedule,
		TableSessionsSpeakers, TableSessionsTags, TableAnnouncements, TableFeedback, TableVideos,
		TableSessionsSearch, TableMyFeedbackSubmitted, TableMyViewedVideos, TableCards,
		TableRelatedSessions, TableMapGeoJSON, TableMyReservations:
		return true
	}
	return false
}

// SessionRecord is a stored session row.
type SessionRecord struct {
	ID           string
	RoomID       string
	Start        int64
	End          int64
	Title        string
	Abstract     string
	Hashtag      string
	URL          string
	YoutubeURL   string
	Livestream   bool
	Featured     bool
	Tags         []string
	SpeakerNames string
	MainTag      string
	Color        string
	CaptionsURL  string
	PhotoURL     string
	ImportHash   string
	Updated      int64
}

// GetSession reads one session. Returns ErrNotFound if absent.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, IFNULL(room_id, ''), session_start, session_end,
			IFNULL(session_title, ''), IFNULL(session_abstract, ''), IFNULL(session_hashtag, ''),
			IFNULL(session_url, ''), IFNULL(session_youtube_url, ''), session_livestream, session_featured,
			IFNULL(session_tags, ''), IFNULL(session_speaker_names, ''), IFNULL(session_main_tag, ''),
			IFNULL(session_color, ''), IFNULL(session_captions_url, ''), IFNULL(session_photo_url, ''),
			session_import_hashcode, updated
		FROM sessions WHERE session_id = ?
	`, id)

	var r SessionRecord
	var tags string
	err := row.Scan(&r.ID, &r.RoomID, &r.Start, &r.End, &r.Title, &r.Abstract, &r.Hashtag,
		&r.URL, &r.YoutubeURL, &r.Livestream, &r.Featured, &tags, &r.SpeakerNames, &r.MainTag,
		&r.Color, &r.CaptionsURL, &r.PhotoURL, &r.ImportHash, &r.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("get session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %q: %w", id, err)
	}
	r.Tags = SplitTags(tags)
	return r, nil
}

// SessionTagIDs returns the tag ids joined to a session, in tag id order.
func (s *Store) SessionTagIDs(ctx context.Context, sessionID string) ([]string, error) {
	return s.strings(ctx,
		"SELECT tag_id FROM sessions_tags WHERE session_id = ? ORDER BY tag_id", sessionID)
}

// SessionSpeakerIDs returns the speaker ids joined to a session.
func (s *Store) SessionSpeakerIDs(ctx context.Context, sessionID string) ([]string, error) {
	return s.strings(ctx,
		"SELECT speaker_id FROM sessions_speakers WHERE session_id = ? ORDER BY speaker_id", sessionID)
}

// Card is a stored card row with its resolved display window.
type Card struct {
	ID           string
	Title        string
	DisplayStart int64
	DisplayEnd   int64
}

// Cards returns every card ordered by id.
func (s *Store) Cards(ctx context.Context) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT IFNULL(card_id, ''), IFNULL(title, ''), IFNULL(display_start_date, 0), IFNULL(display_end_date, 0)
		FROM cards ORDER BY card_id
	`)
	if err != nil {
		return nil, fmt.Errorf("cards: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.Title, &c.DisplayStart, &c.DisplayEnd); err != nil {
			return nil, fmt.Errorf("cards: scan: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ActiveCards returns cards whose display window contains now.
func (s *Store) ActiveCards(ctx context.Context, now int64) ([]Card, error) {
	all, err := s.Cards(ctx)
	if err != nil {
		return nil, err
	}
	var active []Card
	for _, c := range all {
		if c.DisplayStart <= now && now < c.DisplayEnd {
			active = append(active, c)
		}
	}
	return active, nil
}

// Tags returns every stored tag, ordered by category then order in category.
func (s *Store) Tags(ctx context.Context) ([]model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag_id, tag_category, tag_name, IFNULL(tag_order_in_category, 0), tag_color,
			tag_abstract, IFNULL(tag_photo_url, '')
		FROM tags ORDER BY tag_category, tag_order_in_category, tag_id
	`)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		var category string
		if err := rows.Scan(&t.ID, &category, &t.Name, &t.OrderInCategory, &t.Color, &t.Abstract, &t.PhotoURL); err != nil {
			return nil, fmt.Errorf("tags: scan: %w", err)
		}
		t.Category = model.TagCategory(category)
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// References holds the stored rows a session can point at.
type References struct {
	Rooms    []model.Room
	Tags     []model.Tag
	Speakers []model.Speaker
}

// References returns the stored rooms, tags and speakers. Only the columns
// session resolution reads are filled.
func (s *Store) References(ctx context.Context) (References, error) {
	var refs References

	rooms, err := s.strings(ctx, "SELECT room_id FROM rooms ORDER BY room_id")
	if err != nil {
		return References{}, fmt.Errorf("references: rooms: %w", err)
	}
	for _, id := range rooms {
		refs.Rooms = append(refs.Rooms, model.Room{ID: id})
	}

	if refs.Tags, err = s.Tags(ctx); err != nil {
		return References{}, fmt.Errorf("references: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT speaker_id, IFNULL(speaker_name, '') FROM speakers ORDER BY speaker_id")
	if err != nil {
		return References{}, fmt.Errorf("references: speakers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sp model.Speaker
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			return References{}, fmt.Errorf("references: speakers: scan: %w", err)
		}
		refs.Speakers = append(refs.Speakers, sp)
	}
	return refs, rows.Err()
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// JoinTags encodes an ordered tag list for the session_tags column.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// SplitTags decodes the session_tags column.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
