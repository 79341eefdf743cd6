package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/franz/media-librarian/internal/util"
)

const mediaColumns = `id, playlists_id, path, COALESCE(webpath, ''),
	COALESCE(size, 0), COALESCE(duration, 0), COALESCE(width, 0), COALESCE(height, 0), COALESCE(fps, 0),
	COALESCE(video_codecs, ''), COALESCE(audio_codecs, ''), COALESCE(subtitle_codecs, ''),
	COALESCE(video_count, 0), COALESCE(audio_count, 0), COALESCE(subtitle_count, 0),
	COALESCE(language, ''), COALESCE(tags, ''), COALESCE(title, ''), COALESCE(uploader, ''),
	COALESCE(view_count, 0), COALESCE(favorite_count, 0), COALESCE(score, 0), COALESCE(upvote_ratio, 0),
	COALESCE(live_status, ''), COALESCE(age_limit, 0), COALESCE(type, ''),
	time_created, time_modified, time_deleted, time_downloaded, COALESCE(time_uploaded, 0),
	download_attempts, COALESCE(error, ''), COALESCE(corruption, -1)`

func scanMedia(row interface{ Scan(...any) error }) (*Media, error) {
	m := &Media{}
	err := row.Scan(
		&m.ID, &m.PlaylistsID, &m.Path, &m.Webpath,
		&m.Size, &m.Duration, &m.Width, &m.Height, &m.FPS,
		&m.VideoCodecs, &m.AudioCodecs, &m.SubtitleCodecs,
		&m.VideoCount, &m.AudioCount, &m.SubtitleCount,
		&m.Language, &m.Tags, &m.Title, &m.Uploader,
		&m.ViewCount, &m.FavoriteCount, &m.Score, &m.UpvoteRatio,
		&m.LiveStatus, &m.AgeLimit, &m.Type,
		&m.TimeCreated, &m.TimeModified, &m.TimeDeleted, &m.TimeDownloaded, &m.TimeUploaded,
		&m.DownloadAttempts, &m.Error, &m.Corruption,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMediaByPath fetches a media row by canonical path; nil when absent
func (s *Store) GetMediaByPath(path string) (*Media, error) {
	m, err := scanMedia(s.db.QueryRow(
		"SELECT "+mediaColumns+" FROM media WHERE path = ? ORDER BY id LIMIT 1", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return m, nil
}

// Exists reports whether path matches any media path or webpath
func (s *Store) Exists(path string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM media WHERE path = ? OR webpath = ?", path, path).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return count > 0, nil
}

// MediaAdd inserts or upserts media entries. An entry matching an existing
// row by path (or by webpath, when the entry carries one) is merged first:
// existing values fill empty incoming fields, time_created is preserved,
// and download_attempts is bumped and clamped. Captions carried by the
// entry replace the stored set.
func (s *Store) MediaAdd(entries ...*Media) error {
	for _, m := range entries {
		if m == nil {
			continue
		}
		if m.Path == "" {
			return fmt.Errorf("media path is required")
		}
		if err := s.mediaAddOne(m); err != nil {
			return fmt.Errorf("failed to add %s: %w", m.Path, err)
		}
	}
	return nil
}

func (s *Store) mediaAddOne(m *Media) error {
	existing, err := s.findMergeTarget(m)
	if err != nil {
		return err
	}
	if existing != nil {
		mergeMedia(m, existing)
	}

	if m.TimeCreated == 0 {
		m.TimeCreated = s.appStart
	}
	m.TimeModified = s.appStart

	err = s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO media (playlists_id, path, webpath, size, duration, width, height, fps,
				video_codecs, audio_codecs, subtitle_codecs, video_count, audio_count, subtitle_count,
				language, tags, title, uploader, view_count, favorite_count, score, upvote_ratio,
				live_status, age_limit, type,
				time_created, time_modified, time_deleted, time_downloaded, time_uploaded,
				download_attempts, error, corruption)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(playlists_id, path) DO UPDATE SET
				webpath = excluded.webpath,
				size = excluded.size,
				duration = excluded.duration,
				width = excluded.width,
				height = excluded.height,
				fps = excluded.fps,
				video_codecs = excluded.video_codecs,
				audio_codecs = excluded.audio_codecs,
				subtitle_codecs = excluded.subtitle_codecs,
				video_count = excluded.video_count,
				audio_count = excluded.audio_count,
				subtitle_count = excluded.subtitle_count,
				language = excluded.language,
				tags = excluded.tags,
				title = excluded.title,
				uploader = excluded.uploader,
				view_count = excluded.view_count,
				favorite_count = excluded.favorite_count,
				score = excluded.score,
				upvote_ratio = excluded.upvote_ratio,
				live_status = excluded.live_status,
				age_limit = excluded.age_limit,
				type = excluded.type,
				time_modified = excluded.time_modified,
				time_deleted = excluded.time_deleted,
				time_downloaded = excluded.time_downloaded,
				time_uploaded = excluded.time_uploaded,
				download_attempts = excluded.download_attempts,
				error = excluded.error,
				corruption = excluded.corruption
		`,
			m.PlaylistsID, m.Path, nullStr(m.Webpath), m.Size, m.Duration, m.Width, m.Height, m.FPS,
			nullStr(m.VideoCodecs), nullStr(m.AudioCodecs), nullStr(m.SubtitleCodecs),
			m.VideoCount, m.AudioCount, m.SubtitleCount,
			nullStr(m.Language), nullStr(m.Tags), nullStr(m.Title), nullStr(m.Uploader),
			m.ViewCount, m.FavoriteCount, m.Score, m.UpvoteRatio,
			nullStr(m.LiveStatus), m.AgeLimit, nullStr(m.Type),
			m.TimeCreated, m.TimeModified, m.TimeDeleted, m.TimeDownloaded, nullInt(m.TimeUploaded),
			m.DownloadAttempts, nullStr(m.Error), nullNegInt(m.Corruption))
		if err != nil {
			return err
		}

		var id int64
		err = tx.QueryRow("SELECT id FROM media WHERE playlists_id = ? AND path = ?",
			m.PlaylistsID, m.Path).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to resolve media id: %w", err)
		}
		m.ID = id

		if len(m.Captions) > 0 {
			if err := replaceCaptionsTx(tx, id, m.Captions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for k, v := range m.Extras {
		util.DebugLog("Unknown tag key on %s: %s=%q", m.Path, k, v)
	}
	return nil
}

// findMergeTarget locates the row an incoming entry subsumes: same path,
// or (when the entry has a webpath) the planned-download row keyed on that
// webpath.
func (s *Store) findMergeTarget(m *Media) (*Media, error) {
	row, err := scanMedia(s.db.QueryRow(
		"SELECT "+mediaColumns+" FROM media WHERE path = ? ORDER BY id LIMIT 1", m.Path))
	if err == nil {
		return row, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find merge target: %w", err)
	}

	if m.Webpath == "" {
		return nil, nil
	}
	row, err = scanMedia(s.db.QueryRow(
		"SELECT "+mediaColumns+" FROM media WHERE path = ? OR webpath = ? ORDER BY id LIMIT 1",
		m.Webpath, m.Webpath))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find merge target: %w", err)
	}
	return row, nil
}

// mergeMedia fills empty fields of incoming from existing. time_created is
// always preserved; download_attempts is max+1 clamped to int16.
func mergeMedia(m, old *Media) {
	m.TimeCreated = old.TimeCreated

	attempts := max64(old.DownloadAttempts, m.DownloadAttempts) + 1
	if attempts > MaxDownloadAttempts {
		attempts = MaxDownloadAttempts
	}
	m.DownloadAttempts = attempts

	if m.PlaylistsID == 0 {
		m.PlaylistsID = old.PlaylistsID
	}
	if m.Webpath == "" {
		m.Webpath = old.Webpath
	}
	if m.Size == 0 {
		m.Size = old.Size
	}
	if m.Duration == 0 {
		m.Duration = old.Duration
	}
	if m.Width == 0 {
		m.Width = old.Width
	}
	if m.Height == 0 {
		m.Height = old.Height
	}
	if m.FPS == 0 {
		m.FPS = old.FPS
	}
	if m.VideoCodecs == "" {
		m.VideoCodecs = old.VideoCodecs
	}
	if m.AudioCodecs == "" {
		m.AudioCodecs = old.AudioCodecs
	}
	if m.SubtitleCodecs == "" {
		m.SubtitleCodecs = old.SubtitleCodecs
	}
	if m.VideoCount == 0 {
		m.VideoCount = old.VideoCount
	}
	if m.AudioCount == 0 {
		m.AudioCount = old.AudioCount
	}
	if m.SubtitleCount == 0 {
		m.SubtitleCount = old.SubtitleCount
	}
	if m.Language == "" {
		m.Language = old.Language
	}
	if m.Tags == "" {
		m.Tags = old.Tags
	}
	if m.Title == "" {
		m.Title = old.Title
	}
	if m.Uploader == "" {
		m.Uploader = old.Uploader
	}
	if m.ViewCount == 0 {
		m.ViewCount = old.ViewCount
	}
	if m.FavoriteCount == 0 {
		m.FavoriteCount = old.FavoriteCount
	}
	if m.Score == 0 {
		m.Score = old.Score
	}
	if m.UpvoteRatio == 0 {
		m.UpvoteRatio = old.UpvoteRatio
	}
	if m.LiveStatus == "" {
		m.LiveStatus = old.LiveStatus
	}
	if m.AgeLimit == 0 {
		m.AgeLimit = old.AgeLimit
	}
	if m.Type == "" {
		m.Type = old.Type
	}
	if m.TimeDownloaded == 0 {
		m.TimeDownloaded = old.TimeDownloaded
	}
	if m.TimeUploaded == 0 {
		m.TimeUploaded = old.TimeUploaded
	}
	if m.Error == "" {
		m.Error = old.Error
	}
	if m.Corruption <= 0 && old.Corruption > 0 {
		m.Corruption = old.Corruption
	}
}

// MarkMediaDeleted tombstones every row whose path is in paths, stamping
// the run-start time. Batches are chunked below the engine parameter limit.
// Returns rows changed.
func (s *Store) MarkMediaDeleted(paths []string) (int64, error) {
	return s.setDeleted(paths, s.appStart)
}

// MarkMediaUndeleted clears the tombstone for every row whose path is in
// paths. Returns rows changed.
func (s *Store) MarkMediaUndeleted(paths []string) (int64, error) {
	return s.setDeleted(paths, 0)
}

func (s *Store) setDeleted(paths []string, ts int64) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	var total int64
	const chunkSize = SQLiteParamLimit - 2
	for start := 0; start < len(paths); start += chunkSize {
		end := start + chunkSize
		if end > len(paths) {
			end = len(paths)
		}
		chunk := paths[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]

		args := make([]any, 0, len(chunk)+2)
		args = append(args, ts, ts)
		for _, p := range chunk {
			args = append(args, p)
		}

		res, err := s.db.Exec(
			"UPDATE media SET time_deleted = ? WHERE time_deleted != ? AND path IN ("+placeholders+")",
			args...)
		if err != nil {
			return total, fmt.Errorf("failed to update time_deleted: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// PathsUnder returns media paths under root, split into live and deleted
// sets. The root itself is included when it is a file path in the catalog.
func (s *Store) PathsUnder(root string) (live []string, deleted []string, err error) {
	sep := "/"
	if strings.Contains(root, `\`) && !strings.Contains(root, "/") {
		sep = `\`
	}
	prefix := strings.TrimSuffix(root, sep) + sep

	rows, err := s.db.Query(`
		SELECT path, time_deleted FROM media
		WHERE path = ? OR path LIKE ? ESCAPE '\'
	`, root, likeEscape(prefix)+"%")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query paths under %s: %w", root, err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var td int64
		if err := rows.Scan(&path, &td); err != nil {
			return nil, nil, fmt.Errorf("failed to scan path: %w", err)
		}
		if td == 0 {
			live = append(live, path)
		} else {
			deleted = append(deleted, path)
		}
	}
	return live, deleted, rows.Err()
}

// SetMediaError records an error string on a row without other changes
func (s *Store) SetMediaError(path, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE media SET error = ?, time_modified = ? WHERE path = ?",
		errMsg, s.appStart, path)
	if err != nil {
		return fmt.Errorf("failed to set media error: %w", err)
	}
	return nil
}

// SetCorruption records a media-check result (percent 0-100)
func (s *Store) SetCorruption(path string, percent int64) error {
	_, err := s.db.Exec(
		"UPDATE media SET corruption = ?, time_modified = ? WHERE path = ?",
		percent, s.appStart, path)
	if err != nil {
		return fmt.Errorf("failed to set corruption: %w", err)
	}
	return nil
}

// TruncateMediaForPlaylist hard-deletes every media row of a playlist. Used
// by the computer scanner, where each refresh is authoritative.
func (s *Store) TruncateMediaForPlaylist(playlistID int64) error {
	_, err := s.db.Exec("DELETE FROM media WHERE playlists_id = ?", playlistID)
	if err != nil {
		return fmt.Errorf("failed to truncate playlist media: %w", err)
	}
	return nil
}

// CommitOpts controls DownloadCommit
type CommitOpts struct {
	LocalPath          string
	Error              string
	MarkDeleted        bool
	DeleteWebpathEntry bool // remove the old webpath-keyed row on success
}

// DownloadCommit records a download outcome. On success the planned row
// keyed by the webpath is subsumed by a new row keyed by the local path,
// keeping the webpath as origin. A zero-size local file is treated as a
// failed download. 404s arrive with MarkDeleted set.
func (s *Store) DownloadCommit(webpath string, info *Media, opts CommitOpts) error {
	if info == nil {
		info = &Media{}
	}

	if opts.LocalPath != "" {
		if st, err := os.Stat(opts.LocalPath); err == nil && st.Size() == 0 && opts.Error == "" {
			opts.Error = "Empty download"
			opts.LocalPath = ""
		}
	}

	if opts.LocalPath == "" {
		// Failure path: keep the webpath row, record the outcome
		entry := *info
		entry.Path = webpath
		entry.Error = opts.Error
		if opts.MarkDeleted {
			entry.TimeDeleted = s.appStart
		}
		return s.MediaAdd(&entry)
	}

	entry := *info
	entry.Path = opts.LocalPath
	entry.Webpath = webpath
	entry.Error = opts.Error
	if entry.TimeDownloaded == 0 {
		entry.TimeDownloaded = s.appStart
	}

	if err := s.MediaAdd(&entry); err != nil {
		return err
	}

	if opts.DeleteWebpathEntry && opts.LocalPath != webpath {
		_, err := s.db.Exec("DELETE FROM media WHERE path = ? AND id != ?", webpath, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to remove planned-download row: %w", err)
		}
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullNegInt(v int64) any {
	if v < 0 {
		return nil
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
