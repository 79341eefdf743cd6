package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/media-librarian/internal/pathutil"
	"github.com/franz/media-librarian/internal/util"
)

const playlistColumns = `id, path, extractor_key, extractor_config,
	COALESCE(uploader, ''), COALESCE(title, ''),
	time_created, time_modified, time_deleted, hours_update_delay`

func scanPlaylist(row interface{ Scan(...any) error }) (*Playlist, error) {
	p := &Playlist{}
	err := row.Scan(
		&p.ID, &p.Path, &p.ExtractorKey, &p.ExtractorConfig,
		&p.Uploader, &p.Title,
		&p.TimeCreated, &p.TimeModified, &p.TimeDeleted, &p.HoursUpdateDelay,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PlaylistAdd registers an ingestion source. When checkSubpath is set and a
// playlist already covers a parent path, its id is returned instead of
// creating a duplicate; playlists strictly below the new path are folded in
// (their rows deleted) since the new root covers them.
func (s *Store) PlaylistAdd(path string, p *Playlist, checkSubpath bool) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("playlist path is required")
	}
	if p == nil {
		p = &Playlist{}
	}
	if p.ExtractorKey == "" {
		p.ExtractorKey = ExtractorLocal
	}
	if p.ExtractorConfig == "" {
		p.ExtractorConfig = "{}"
	}
	p.HoursUpdateDelay = ClampDelay(nonZero(p.HoursUpdateDelay, 70))

	if checkSubpath {
		rows, err := s.db.Query(
			"SELECT id, path FROM playlists WHERE time_deleted = 0 AND extractor_config = ?",
			p.ExtractorConfig)
		if err != nil {
			return 0, fmt.Errorf("failed to query playlists: %w", err)
		}
		defer rows.Close()

		var subpathIDs []int64
		for rows.Next() {
			var id int64
			var stored string
			if err := rows.Scan(&id, &stored); err != nil {
				return 0, fmt.Errorf("failed to scan playlist: %w", err)
			}
			if stored == path || pathutil.IsSubpath(stored, path) {
				util.DebugLog("Playlist %s already covered by %s", path, stored)
				return id, nil
			}
			if pathutil.IsSubpath(path, stored) {
				subpathIDs = append(subpathIDs, id)
			}
		}
		if err := rows.Err(); err != nil {
			return 0, err
		}

		for _, id := range subpathIDs {
			if _, err := s.db.Exec("DELETE FROM playlists WHERE id = ?", id); err != nil {
				return 0, fmt.Errorf("failed to remove subpath playlist %d: %w", id, err)
			}
		}
		if len(subpathIDs) > 0 {
			util.InfoLog("Folded %d narrower playlists into %s", len(subpathIDs), path)
		}
	}

	now := s.appStart
	_, err := s.db.Exec(`
		INSERT INTO playlists (path, extractor_key, extractor_config, uploader, title,
			time_created, time_modified, time_deleted, hours_update_delay)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(path, extractor_config) DO UPDATE SET
			extractor_key = excluded.extractor_key,
			uploader = CASE WHEN excluded.uploader != '' THEN excluded.uploader ELSE playlists.uploader END,
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE playlists.title END,
			time_modified = excluded.time_modified,
			time_deleted = 0
	`, path, p.ExtractorKey, p.ExtractorConfig, p.Uploader, p.Title,
		now, now, p.HoursUpdateDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert playlist: %w", err)
	}

	// LastInsertId is unreliable after ON CONFLICT UPDATE; resolve by key
	var id int64
	err = s.db.QueryRow(
		"SELECT id FROM playlists WHERE path = ? AND extractor_config = ?",
		path, p.ExtractorConfig).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve playlist id: %w", err)
	}
	return id, nil
}

// GetPlaylist fetches a playlist by path; nil when absent
func (s *Store) GetPlaylist(path string) (*Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRow(
		"SELECT "+playlistColumns+" FROM playlists WHERE path = ? ORDER BY id LIMIT 1", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return p, nil
}

// PlaylistsToRefresh returns live playlists whose refresh cadence has
// elapsed. With force set, every live playlist qualifies.
func (s *Store) PlaylistsToRefresh(force bool) ([]*Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE time_deleted = 0"
	if !force {
		query += " AND (? - time_modified) >= hours_update_delay * 3600"
	}
	query += " ORDER BY id"

	var rows *sql.Rows
	var err error
	if force {
		rows, err = s.db.Query(query)
	} else {
		rows, err = s.db.Query(query, s.appStart)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// UpdateMoreFrequently shrinks a playlist's refresh cadence after a
// productive update (x0.3, floor 1 hour)
func (s *Store) UpdateMoreFrequently(path string) error {
	return s.adjustDelay(path, "MAX(1, CAST(hours_update_delay * 0.3 AS INTEGER))")
}

// UpdateLessFrequently doubles a playlist's refresh cadence after an empty
// update, capped at one year
func (s *Store) UpdateLessFrequently(path string) error {
	return s.adjustDelay(path, "MIN(8760, hours_update_delay * 2)")
}

func (s *Store) adjustDelay(path, expr string) error {
	_, err := s.db.Exec(
		"UPDATE playlists SET hours_update_delay = "+expr+", time_modified = ? WHERE path = ?",
		s.appStart, path)
	if err != nil {
		return fmt.Errorf("failed to adjust refresh cadence: %w", err)
	}
	return nil
}

// TouchPlaylist bumps time_modified without changing the cadence
func (s *Store) TouchPlaylist(id int64) error {
	_, err := s.db.Exec("UPDATE playlists SET time_modified = ? WHERE id = ?", s.appStart, id)
	return err
}

// MarkPlaylistsDeletedUnder tombstones every playlist rooted at or below
// path, and every child media row with it. Children inherit the playlist's
// time_deleted. Returns the number of playlists affected.
func (s *Store) MarkPlaylistsDeletedUnder(path string) (int64, error) {
	sep := "/"
	if strings.Contains(path, `\`) && !strings.Contains(path, "/") {
		sep = `\`
	}
	prefix := strings.TrimSuffix(path, sep) + sep

	var count int64
	err := s.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE playlists SET time_deleted = ?
			WHERE time_deleted = 0 AND (path = ? OR path LIKE ? ESCAPE '\')
		`, s.appStart, path, likeEscape(prefix)+"%")
		if err != nil {
			return err
		}
		count, _ = res.RowsAffected()

		_, err = tx.Exec(`
			UPDATE media SET time_deleted = ?
			WHERE time_deleted = 0 AND playlists_id IN (
				SELECT id FROM playlists WHERE time_deleted = ?
			)
		`, s.appStart, s.appStart)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark playlists deleted: %w", err)
	}
	return count, nil
}

// likeEscape escapes LIKE metacharacters so a path prefix matches literally
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func nonZero(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}
