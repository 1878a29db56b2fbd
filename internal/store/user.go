package store

import (
	"context"
	"fmt"

	"github.com/treffen/confsync/internal/model"
)

// User-scoped rows are keyed by (foreign id, account name) and inserted with
// replace semantics, so repeating an action overwrites rather than
// duplicates.

// SetInSchedule adds or removes a session from an account's schedule.
func (s *Store) SetInSchedule(ctx context.Context, row model.MySchedule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO myschedule (session_id, account_name, dirty, in_schedule, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, row.SessionID, row.Account, row.Dirty, row.InSchedule, row.Timestamp)
	if err != nil {
		return fmt.Errorf("set in schedule: %w", err)
	}
	return nil
}

// SetReservation records a reservation status for an account.
func (s *Store) SetReservation(ctx context.Context, row model.MyReservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO myreservations (session_id, account_name, reservation_status, timestamp)
		VALUES (?, ?, ?, ?)
	`, row.SessionID, row.Account, int(row.Status), row.Timestamp)
	if err != nil {
		return fmt.Errorf("set reservation: %w", err)
	}
	return nil
}

// MarkFeedbackSubmitted records that an account submitted feedback.
func (s *Store) MarkFeedbackSubmitted(ctx context.Context, row model.MyFeedbackSubmitted) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO myfeedbacksubmitted (session_id, account_name, dirty) VALUES (?, ?, ?)
	`, row.SessionID, row.Account, row.Dirty)
	if err != nil {
		return fmt.Errorf("mark feedback submitted: %w", err)
	}
	return nil
}

// MarkVideoViewed records that an account watched a video.
func (s *Store) MarkVideoViewed(ctx context.Context, row model.MyViewedVideo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO myviewedvideos (video_id, account_name, dirty) VALUES (?, ?, ?)
	`, row.VideoID, row.Account, row.Dirty)
	if err != nil {
		return fmt.Errorf("mark video viewed: %w", err)
	}
	return nil
}

// SaveFeedback stores a feedback form for later upload.
func (s *Store) SaveFeedback(ctx context.Context, fb model.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (updated, session_id, session_rating, answer_relevance,
			answer_content, answer_speaker, comments, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fb.Updated, fb.SessionID, fb.Rating, fb.AnswerRelevance, fb.AnswerContent,
		fb.AnswerSpeaker, fb.Comments, fb.Synced)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// MySchedule returns an account's schedule rows ordered by session id.
func (s *Store) MySchedule(ctx context.Context, account string) ([]model.MySchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, account_name, dirty, in_schedule, IFNULL(timestamp, 0)
		FROM myschedule WHERE account_name = ? ORDER BY session_id
	`, account)
	if err != nil {
		return nil, fmt.Errorf("my schedule: %w", err)
	}
	defer rows.Close()

	var out []model.MySchedule
	for rows.Next() {
		var r model.MySchedule
		if err := rows.Scan(&r.SessionID, &r.Account, &r.Dirty, &r.InSchedule, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("my schedule: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reservations returns an account's reservations ordered by session id.
func (s *Store) Reservations(ctx context.Context, account string) ([]model.MyReservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, account_name, reservation_status, IFNULL(timestamp, 0)
		FROM myreservations WHERE account_name = ? ORDER BY session_id
	`, account)
	if err != nil {
		return nil, fmt.Errorf("reservations: %w", err)
	}
	defer rows.Close()

	var out []model.MyReservation
	for rows.Next() {
		var r model.MyReservation
		var status int64
		if err := rows.Scan(&r.SessionID, &r.Account, &status, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("reservations: scan: %w", err)
		}
		if r.Status, err = model.ParseReservationStatus(status); err != nil {
			return nil, fmt.Errorf("reservations: session %q: %w", r.SessionID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransitionResult counts the rows moved by ReassignAccount.
type TransitionResult struct {
	Schedule            int
	FeedbackSubmitted   int
	ViewedVideos        int
	DroppedReservations int
}

// ReassignAccount moves every user-scoped row from one account to another
// in one transaction. When both accounts hold a row for the same key the
// moved row replaces the existing one, so rows are never duplicated.
// Reservations never belong to the anonymous sentinel: those it holds are
// deleted on sign-in, and on sign-out they stay with the account they were
// made under.
func (s *Store) ReassignAccount(ctx context.Context, from, to string) (TransitionResult, error) {
	var res TransitionResult
	if from == to {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("reassign account: begin: %w", err)
	}
	defer tx.Rollback()

	moves := []struct {
		table string
		dst   *int
	}{
		{TableMySchedule, &res.Schedule},
		{TableMyFeedbackSubmitted, &res.FeedbackSubmitted},
		{TableMyViewedVideos, &res.ViewedVideos},
	}
	for _, m := range moves {
		n, err := execCount(ctx, tx,
			fmt.Sprintf("UPDATE OR REPLACE %s SET account_name = ? WHERE account_name = ?", m.table), to, from)
		if err != nil {
			return TransitionResult{}, fmt.Errorf("reassign account: %s: %w", m.table, err)
		}
		*m.dst = n
	}

	switch {
	case from == model.AnonymousAccount:
		n, err := execCount(ctx, tx, "DELETE FROM myreservations WHERE account_name = ?", model.AnonymousAccount)
		if err != nil {
			return TransitionResult{}, fmt.Errorf("reassign account: drop reservations: %w", err)
		}
		res.DroppedReservations = n
	case to == model.AnonymousAccount:
		// Kept under from.
	default:
		if _, err := execCount(ctx, tx,
			"UPDATE OR REPLACE myreservations SET account_name = ? WHERE account_name = ?", to, from); err != nil {
			return TransitionResult{}, fmt.Errorf("reassign account: myreservations: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return TransitionResult{}, fmt.Errorf("reassign account: commit: %w", err)
	}

	s.logger.Info("reassigned account rows",
		"schedule", res.Schedule,
		"feedback_submitted", res.FeedbackSubmitted,
		"viewed_videos", res.ViewedVideos,
		"dropped_reservations", res.DroppedReservations)
	return res, nil
}
