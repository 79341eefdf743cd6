package catalog

import "fmt"

// DownloadQueue returns live rows still waiting for a download: their path
// is a URL, they have never been fetched, and the attempt budget holds.
func (s *Store) DownloadQueue(maxAttempts int64, limit int) ([]*Media, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+mediaColumns+` FROM media
		WHERE time_deleted = 0
		  AND time_downloaded = 0
		  AND (path LIKE 'http://%' OR path LIKE 'https://%')
		  AND download_attempts <= ?
		ORDER BY download_attempts, id
		LIMIT ?
	`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build download queue: %w", err)
	}
	defer rows.Close()

	var queue []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		queue = append(queue, m)
	}
	return queue, rows.Err()
}

// LocalMedia returns live rows whose path is a local file, optionally
// restricted to one type prefix ("video", "audio", "image", "text").
func (s *Store) LocalMedia(mediaType string, limit int) ([]*Media, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT ` + mediaColumns + ` FROM media
		WHERE time_deleted = 0
		  AND path NOT LIKE 'http://%'
		  AND path NOT LIKE 'https://%'`
	args := []any{}
	if mediaType != "" {
		query += " AND type LIKE ?"
		args = append(args, mediaType+"%")
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query local media: %w", err)
	}
	defer rows.Close()

	var results []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// Counts summarizes the catalog for end-of-run reporting
func (s *Store) Counts() (live, tombstoned, playlists int64, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM media WHERE time_deleted = 0").Scan(&live); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count media: %w", err)
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM media WHERE time_deleted != 0").Scan(&tombstoned); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count media: %w", err)
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM playlists WHERE time_deleted = 0").Scan(&playlists); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count playlists: %w", err)
	}
	return live, tombstoned, playlists, nil
}
