package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/treffen/confsync/internal/model"
)

// ScheduleQuery selects sessions for a schedule view.
type ScheduleQuery struct {
	Account string

	// Start and End bound the session start time, inclusive. End 0 means
	// no upper bound.
	Start int64
	End   int64

	// StarredOnly keeps sessions in the account's schedule.
	StarredOnly bool

	// ScheduledOnly drops sessions whose start time could not be parsed.
	ScheduledOnly bool

	// SessionIDs restricts the result when non-nil.
	SessionIDs []string
}

// ScheduleRow is a session annotated with the account's user-scoped state.
type ScheduleRow struct {
	SessionID         string
	Title             string
	Abstract          string
	RoomID            string
	RoomName          string
	Start             int64
	End               int64
	Tags              []string
	MainTag           string
	Color             string
	Hashtag           string
	SpeakerNames      string
	Livestream        bool
	Featured          bool
	InSchedule        bool
	Reservation       model.ReservationStatus
	FeedbackSubmitted bool
}

// ScheduleRows returns sessions ordered by start time, left-joined against
// the account's schedule, reservation and feedback rows.
func (s *Store) ScheduleRows(ctx context.Context, q ScheduleQuery) ([]ScheduleRow, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT s.session_id, IFNULL(s.session_title, ''), IFNULL(s.session_abstract, ''),
			IFNULL(s.room_id, ''), IFNULL(r.room_name, ''), s.session_start, s.session_end,
			IFNULL(s.session_tags, ''), IFNULL(s.session_main_tag, ''), IFNULL(s.session_color, ''),
			IFNULL(s.session_hashtag, ''), IFNULL(s.session_speaker_names, ''),
			s.session_livestream, s.session_featured,
			IFNULL(ms.in_schedule, 0), IFNULL(mr.reservation_status, 0),
			CASE WHEN mf.session_id IS NULL THEN 0 ELSE 1 END
		FROM sessions s
		LEFT OUTER JOIN rooms r ON r.room_id = s.room_id
		LEFT OUTER JOIN myschedule ms ON ms.session_id = s.session_id AND ms.account_name = ?
		LEFT OUTER JOIN myreservations mr ON mr.session_id = s.session_id AND mr.account_name = ?
		LEFT OUTER JOIN myfeedbacksubmitted mf ON mf.session_id = s.session_id AND mf.account_name = ?
		WHERE s.session_start >= ?`)
	args := []any{q.Account, q.Account, q.Account, q.Start}

	if q.End > 0 {
		b.WriteString(" AND s.session_start <= ?")
		args = append(args, q.End)
	}
	if q.ScheduledOnly {
		b.WriteString(" AND s.session_start > 0")
	}
	if q.StarredOnly {
		b.WriteString(" AND IFNULL(ms.in_schedule, 0) = 1")
	}
	if q.SessionIDs != nil {
		if len(q.SessionIDs) == 0 {
			return nil, nil
		}
		b.WriteString(" AND s.session_id IN (")
		b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(q.SessionIDs)), ", "))
		b.WriteString(")")
		for _, id := range q.SessionIDs {
			args = append(args, id)
		}
	}
	b.WriteString(" ORDER BY s.session_start, s.session_id")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("schedule rows: %w", err)
	}
	defer rows.Close()

	var out []ScheduleRow
	for rows.Next() {
		var r ScheduleRow
		var tags string
		var status int64
		if err := rows.Scan(&r.SessionID, &r.Title, &r.Abstract, &r.RoomID, &r.RoomName,
			&r.Start, &r.End, &tags, &r.MainTag, &r.Color, &r.Hashtag, &r.SpeakerNames,
			&r.Livestream, &r.Featured, &r.InSchedule, &status, &r.FeedbackSubmitted); err != nil {
			return nil, fmt.Errorf("schedule rows: scan: %w", err)
		}
		r.Tags = SplitTags(tags)
		if r.Reservation, err = model.ParseReservationStatus(status); err != nil {
			return nil, fmt.Errorf("schedule rows: session %q: %w", r.SessionID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
