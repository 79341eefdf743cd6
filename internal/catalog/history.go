package catalog

import "fmt"

// AddHistory records a playback event
func (s *Store) AddHistory(h *History) error {
	done := 0
	if h.Done {
		done = 1
	}
	res, err := s.db.Exec(
		"INSERT INTO history (media_id, time_played, playhead, done) VALUES (?, ?, ?, ?)",
		h.MediaID, h.TimePlayed, nullInt(h.Playhead), done)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		h.ID = id
	}
	return nil
}

// GetHistory returns the playback events of a media row, newest first
func (s *Store) GetHistory(mediaID int64) ([]History, error) {
	rows, err := s.db.Query(`
		SELECT id, media_id, time_played, COALESCE(playhead, 0), done
		FROM history WHERE media_id = ? ORDER BY time_played DESC
	`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []History
	for rows.Next() {
		var h History
		var done int
		if err := rows.Scan(&h.ID, &h.MediaID, &h.TimePlayed, &h.Playhead, &done); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.Done = done != 0
		events = append(events, h)
	}
	return events, rows.Err()
}
