package store

import (
	"context"
	"fmt"
)

// UpdateSearchIndex rebuilds sessions_search from the current sessions and
// speakers. The rebuild is expensive, so mutations never trigger it; callers
// run it once after a successful reconciliation.
func (s *Store) UpdateSearchIndex(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("update search index: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions_search"); err != nil {
		return 0, fmt.Errorf("update search index: clear: %w", err)
	}

	n, err := execCount(ctx, tx, `
		INSERT INTO sessions_search (session_id, body)
		SELECT s.session_id,
			IFNULL(s.session_title, '') || '; ' ||
			IFNULL(s.session_abstract, '') || '; ' ||
			IFNULL(GROUP_CONCAT(t.speaker_name, ' '), '') || '; '
		FROM sessions s
		LEFT OUTER JOIN (
			SELECT ss.session_id, sp.speaker_id, sp.speaker_name
			FROM sessions_speakers ss
			INNER JOIN speakers sp ON ss.speaker_id = sp.speaker_id
		) t ON s.session_id = t.session_id
		GROUP BY s.session_id
	`)
	if err != nil {
		return 0, fmt.Errorf("update search index: fill: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("update search index: commit: %w", err)
	}
	s.logger.Debug("rebuilt search index", "sessions", n)
	return n, nil
}

// SearchDocument is one indexed session.
type SearchDocument struct {
	SessionID string
	Body      string
}

// SearchDocuments returns the indexed bodies ordered by session id.
func (s *Store) SearchDocuments(ctx context.Context) ([]SearchDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, body FROM sessions_search ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var docs []SearchDocument
	for rows.Next() {
		var d SearchDocument
		if err := rows.Scan(&d.SessionID, &d.Body); err != nil {
			return nil, fmt.Errorf("search documents: scan: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
