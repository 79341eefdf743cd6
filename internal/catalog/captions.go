package catalog

import (
	"database/sql"
	"fmt"
)

// replaceCaptionsTx swaps the caption set for a media row. Re-probing a
// file replaces chapters, subtitles and tag blobs wholesale.
func replaceCaptionsTx(tx *sql.Tx, mediaID int64, captions []Caption) error {
	if _, err := tx.Exec("DELETE FROM captions WHERE media_id = ?", mediaID); err != nil {
		return fmt.Errorf("failed to clear captions: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO captions (media_id, time, text) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare caption insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range captions {
		if c.Text == "" {
			continue
		}
		if _, err := stmt.Exec(mediaID, c.Time, c.Text); err != nil {
			return fmt.Errorf("failed to insert caption: %w", err)
		}
	}
	return nil
}

// ReplaceCaptions swaps the caption set for a media row outside a MediaAdd
func (s *Store) ReplaceCaptions(mediaID int64, captions []Caption) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return replaceCaptionsTx(tx, mediaID, captions)
	})
}

// GetCaptions returns the captions of a media row ordered by time
func (s *Store) GetCaptions(mediaID int64) ([]Caption, error) {
	rows, err := s.db.Query(
		"SELECT id, media_id, time, text FROM captions WHERE media_id = ? ORDER BY time, id", mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query captions: %w", err)
	}
	defer rows.Close()

	var captions []Caption
	for rows.Next() {
		var c Caption
		if err := rows.Scan(&c.ID, &c.MediaID, &c.Time, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan caption: %w", err)
		}
		captions = append(captions, c)
	}
	return captions, rows.Err()
}
