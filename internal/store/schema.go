package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema versions. Each release that changed the on-disk layout has one.
const (
	VersionBase              = 1
	VersionFeedbackSubmitted = 2
	VersionSpeakerLinks      = 3
	VersionTagPhoto          = 4
	VersionCards             = 5
	VersionRelatedSessions   = 6
	VersionMapGeoJSON        = 7
	VersionReservations      = 8
	VersionBlockKind         = 9

	CurrentVersion = VersionBlockKind
)

// Table names.
const (
	TableBlocks              = "blocks"
	TableTags                = "tags"
	TableRooms               = "rooms"
	TableSessions            = "sessions"
	TableSpeakers            = "speakers"
	TableMySchedule          = "myschedule"
	TableSessionsSpeakers    = "sessions_speakers"
	TableSessionsTags        = "sessions_tags"
	TableAnnouncements       = "announcements"
	TableFeedback            = "feedback"
	TableVideos              = "videos"
	TableSessionsSearch      = "sessions_search"
	TableMyFeedbackSubmitted = "myfeedbacksubmitted"
	TableMyViewedVideos      = "myviewedvideos"
	TableCards               = "cards"
	TableRelatedSessions     = "related_sessions"
	TableMapGeoJSON          = "mapgeojson"
	TableMyReservations      = "myreservations"
)

// deprecatedTables are dropped on every upgrade whether or not the source
// version ever had them.
var deprecatedTables = []string{
	"tracks",
	"sessions_tracks",
	"sandbox",
	"people_ive_met",
	"experts",
	"partners",
	"mapmarkers",
}

var deprecatedTriggers = []string{
	"sessions_tracks_delete",
}

// ApplyFunc mutates the schema within the open transaction.
type ApplyFunc func(ctx context.Context, tx *sql.Tx) error

// Step moves the schema from one version to the next.
type Step struct {
	From        int
	To          int
	Description string
	Apply       ApplyFunc
}

// schemaSteps is the full chain. Creating a store replays every step from
// version 0, so the create and upgrade paths cannot diverge.
var schemaSteps = []Step{
	{0, VersionBase, "base tables", execAll(
		`CREATE TABLE blocks (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			block_id TEXT NOT NULL,
			block_title TEXT NOT NULL,
			block_start INTEGER NOT NULL,
			block_end INTEGER NOT NULL,
			block_type TEXT,
			block_subtitle TEXT,
			UNIQUE (block_id))`,
		`CREATE TABLE tags (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			tag_id TEXT NOT NULL,
			tag_category TEXT NOT NULL,
			tag_name TEXT NOT NULL,
			tag_order_in_category INTEGER,
			tag_color TEXT NOT NULL,
			tag_abstract TEXT NOT NULL,
			UNIQUE (tag_id))`,
		`CREATE TABLE rooms (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			room_name TEXT,
			room_floor TEXT,
			UNIQUE (room_id))`,
		`CREATE TABLE sessions (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			updated INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			room_id TEXT REFERENCES rooms(room_id),
			session_start INTEGER NOT NULL,
			session_end INTEGER NOT NULL,
			session_title TEXT,
			session_abstract TEXT,
			session_hashtag TEXT,
			session_url TEXT,
			session_youtube_url TEXT,
			session_livestream INTEGER NOT NULL DEFAULT 0,
			session_featured INTEGER NOT NULL DEFAULT 0,
			session_tags TEXT,
			session_speaker_names TEXT,
			session_import_hashcode TEXT NOT NULL DEFAULT '',
			session_main_tag TEXT,
			session_color TEXT,
			session_captions_url TEXT,
			session_photo_url TEXT,
			session_related_content TEXT,
			UNIQUE (session_id))`,
		`CREATE TABLE speakers (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			updated INTEGER NOT NULL,
			speaker_id TEXT NOT NULL,
			speaker_name TEXT,
			speaker_image_url TEXT,
			speaker_company TEXT,
			speaker_abstract TEXT,
			speaker_url TEXT,
			speaker_import_hashcode TEXT NOT NULL DEFAULT '',
			UNIQUE (speaker_id))`,
		`CREATE TABLE myschedule (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			account_name TEXT NOT NULL,
			dirty INTEGER NOT NULL DEFAULT 1,
			in_schedule INTEGER NOT NULL DEFAULT 1,
			UNIQUE (session_id, account_name) ON CONFLICT REPLACE)`,
		`CREATE TABLE sessions_speakers (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			speaker_id TEXT NOT NULL REFERENCES speakers(speaker_id),
			UNIQUE (session_id, speaker_id) ON CONFLICT REPLACE)`,
		`CREATE TABLE sessions_tags (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			tag_id TEXT NOT NULL REFERENCES tags(tag_id),
			UNIQUE (session_id, tag_id) ON CONFLICT REPLACE)`,
		`CREATE TABLE announcements (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			updated INTEGER NOT NULL,
			announcement_id TEXT NOT NULL,
			announcement_title TEXT NOT NULL,
			announcement_activity_json BLOB,
			announcement_url TEXT,
			announcement_date INTEGER NOT NULL,
			UNIQUE (announcement_id))`,
		`CREATE TABLE feedback (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			updated INTEGER NOT NULL,
			session_id TEXT REFERENCES sessions(session_id),
			session_rating INTEGER NOT NULL,
			answer_relevance INTEGER NOT NULL,
			answer_content INTEGER NOT NULL,
			answer_speaker INTEGER NOT NULL,
			comments TEXT,
			synced INTEGER NOT NULL DEFAULT 0)`,
		`CREATE TABLE videos (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id TEXT NOT NULL,
			video_year INTEGER NOT NULL,
			video_title TEXT,
			video_desc TEXT,
			video_vid TEXT,
			video_topic TEXT,
			video_speakers TEXT,
			video_thumbnail_url TEXT,
			video_import_hashcode TEXT NOT NULL,
			UNIQUE (video_id))`,
		`CREATE TABLE sessions_search (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			body TEXT NOT NULL,
			UNIQUE (session_id) ON CONFLICT REPLACE)`,
		`CREATE INDEX idx_sessions_start ON sessions(session_start)`,
		`CREATE INDEX idx_sessions_tags_tag ON sessions_tags(tag_id)`,
		`CREATE INDEX idx_sessions_speakers_speaker ON sessions_speakers(speaker_id)`,
	)},
	{VersionBase, VersionFeedbackSubmitted, "feedback submitted and viewed videos", execAll(
		`CREATE TABLE myfeedbacksubmitted (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			account_name TEXT NOT NULL,
			dirty INTEGER NOT NULL DEFAULT 1,
			UNIQUE (session_id, account_name) ON CONFLICT REPLACE)`,
		`CREATE TABLE myviewedvideos (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id TEXT NOT NULL REFERENCES videos(video_id),
			account_name TEXT NOT NULL,
			dirty INTEGER NOT NULL DEFAULT 1,
			UNIQUE (video_id, account_name) ON CONFLICT REPLACE)`,
	)},
	{VersionFeedbackSubmitted, VersionSpeakerLinks, "speaker profile links", execAll(
		`ALTER TABLE speakers ADD COLUMN speaker_plusone_url TEXT`,
		`ALTER TABLE speakers ADD COLUMN speaker_twitter_url TEXT`,
	)},
	{VersionSpeakerLinks, VersionTagPhoto, "tag photos and schedule timestamps", execAll(
		`ALTER TABLE tags ADD COLUMN tag_photo_url TEXT`,
		`ALTER TABLE myschedule ADD COLUMN timestamp INTEGER`,
	)},
	{VersionTagPhoto, VersionCards, "cards", execAll(
		`CREATE TABLE cards (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_color TEXT,
			action_text TEXT,
			action_url TEXT,
			background_color TEXT,
			card_id TEXT,
			display_end_date INTEGER,
			display_start_date INTEGER,
			message TEXT,
			text_color TEXT,
			title TEXT,
			action_type TEXT,
			action_extra TEXT,
			UNIQUE (card_id))`,
	)},
	{VersionCards, VersionRelatedSessions, "related sessions", execAll(
		`CREATE TABLE related_sessions (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			related_session_id TEXT NOT NULL,
			UNIQUE (session_id, related_session_id) ON CONFLICT IGNORE)`,
	)},
	{VersionRelatedSessions, VersionMapGeoJSON, "map geojson", execAll(
		`CREATE TABLE mapgeojson (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			overlay_id TEXT NOT NULL,
			geojson TEXT NOT NULL,
			UNIQUE (overlay_id))`,
	)},
	{VersionMapGeoJSON, VersionReservations, "session reservations", execAll(
		`CREATE TABLE myreservations (
			_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			account_name TEXT NOT NULL,
			reservation_status INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER,
			UNIQUE (session_id, account_name) ON CONFLICT REPLACE)`,
	)},
	{VersionReservations, VersionBlockKind, "block kind", execAll(
		`ALTER TABLE blocks ADD COLUMN block_kind TEXT`,
	)},
}

func execAll(statements ...string) ApplyFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %.40q: %w", stmt, err)
			}
		}
		return nil
	}
}
