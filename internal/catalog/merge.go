package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/media-librarian/internal/util"
)

// MergeMode selects the conflict policy for MergeFrom
type MergeMode int

const (
	// MergeReplace overwrites destination rows on primary-key conflict
	MergeReplace MergeMode = iota
	// MergeIgnore keeps destination rows, inserting only new primary keys
	MergeIgnore
	// MergeUpsert merges null-preserving: source values fill destination
	// nulls, never the reverse
	MergeUpsert
	// MergeBusinessKey ignores source primary keys entirely; rows are
	// matched by natural key and foreign keys are remapped
	MergeBusinessKey
)

// MergeOpts controls MergeFrom
type MergeOpts struct {
	Mode        MergeMode
	Tables      []string            // allowlist; nil = all catalog tables
	SkipColumns map[string][]string // per-table columns to leave out
	Where       map[string]string   // per-table row filter (SQL fragment)
}

var mergeTableOrder = []string{"playlists", "media", "captions", "history", "blocklist"}

var tablePK = map[string]string{
	"playlists": "id",
	"media":     "id",
	"captions":  "id",
	"history":   "id",
	"blocklist": "id",
}

// MergeFrom copies rows from another catalog file into this one. Tables
// are processed parent-first so foreign keys resolve.
func (s *Store) MergeFrom(srcPath string, opts MergeOpts) error {
	if _, err := s.db.Exec("ATTACH DATABASE ? AS src", srcPath); err != nil {
		return fmt.Errorf("failed to attach %s: %w", srcPath, err)
	}
	defer s.db.Exec("DETACH DATABASE src")

	allowed := map[string]bool{}
	for _, t := range opts.Tables {
		allowed[t] = true
	}

	for _, table := range mergeTableOrder {
		if len(opts.Tables) > 0 && !allowed[table] {
			continue
		}
		srcHas, err := s.attachedHasTable(table)
		if err != nil {
			return err
		}
		if !srcHas {
			continue
		}

		var n int64
		if opts.Mode == MergeBusinessKey {
			n, err = s.mergeBusinessKey(table, opts)
		} else {
			n, err = s.mergeByPK(table, opts)
		}
		if err != nil {
			return fmt.Errorf("failed to merge %s: %w", table, err)
		}
		util.InfoLog("Merged %d rows into %s", n, table)
	}
	return nil
}

func (s *Store) attachedHasTable(table string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM src.sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to inspect source schema: %w", err)
	}
	return count > 0, nil
}

// sharedColumns intersects the column sets of both sides, minus skips
func (s *Store) sharedColumns(table string, opts MergeOpts, dropPK bool) ([]string, error) {
	dst, err := s.tableColumns("main", table)
	if err != nil {
		return nil, err
	}
	src, err := s.tableColumns("src", table)
	if err != nil {
		return nil, err
	}

	skip := map[string]bool{}
	for _, col := range opts.SkipColumns[table] {
		skip[col] = true
	}
	if dropPK {
		skip[tablePK[table]] = true
	}

	srcSet := map[string]bool{}
	for _, c := range src {
		srcSet[c] = true
	}

	var cols []string
	for _, c := range dst {
		if srcSet[c] && !skip[c] {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no shared columns for %s", table)
	}
	return cols, nil
}

func (s *Store) tableColumns(schema, table string) ([]string, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA %s.table_info(%s)", schema, table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s columns: %w", schema, table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *Store) mergeByPK(table string, opts MergeOpts) (int64, error) {
	cols, err := s.sharedColumns(table, opts, false)
	if err != nil {
		return 0, err
	}
	colList := strings.Join(cols, ", ")

	where := ""
	if w := opts.Where[table]; w != "" {
		where = " WHERE " + w
	}

	var query string
	switch opts.Mode {
	case MergeReplace:
		query = fmt.Sprintf("INSERT OR REPLACE INTO main.%s (%s) SELECT %s FROM src.%s%s",
			table, colList, colList, table, where)
	case MergeIgnore:
		query = fmt.Sprintf("INSERT OR IGNORE INTO main.%s (%s) SELECT %s FROM src.%s%s",
			table, colList, colList, table, where)
	case MergeUpsert:
		var sets []string
		pk := tablePK[table]
		for _, c := range cols {
			if c == pk {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = COALESCE(excluded.%s, main.%s.%s)", c, c, table, c))
		}
		query = fmt.Sprintf(
			"INSERT INTO main.%s (%s) SELECT %s FROM src.%s%s WHERE true ON CONFLICT(%s) DO UPDATE SET %s",
			table, colList, colList, table, where, pk, strings.Join(sets, ", "))
	default:
		return 0, fmt.Errorf("unknown merge mode %d", opts.Mode)
	}

	res, err := s.db.Exec(query)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// mergeBusinessKey copies rows matched on natural keys with destination
// primary keys auto-assigned. Foreign keys are remapped through joins on
// the parents' natural keys.
func (s *Store) mergeBusinessKey(table string, opts MergeOpts) (int64, error) {
	where := ""
	if w := opts.Where[table]; w != "" {
		where = " AND (" + w + ")"
	}

	var query string
	switch table {
	case "playlists":
		query = `
			INSERT OR IGNORE INTO main.playlists
				(path, extractor_key, extractor_config, uploader, title,
				 time_created, time_modified, time_deleted, hours_update_delay)
			SELECT path, extractor_key, extractor_config, uploader, title,
				time_created, time_modified, time_deleted, hours_update_delay
			FROM src.playlists WHERE true` + where
	case "media":
		query = `
			INSERT OR IGNORE INTO main.media
				(playlists_id, path, webpath, size, duration, width, height, fps,
				 video_codecs, audio_codecs, subtitle_codecs, video_count, audio_count, subtitle_count,
				 language, tags, title, uploader, view_count, favorite_count, score, upvote_ratio,
				 live_status, age_limit, type,
				 time_created, time_modified, time_deleted, time_downloaded, time_uploaded,
				 download_attempts, error, corruption)
			SELECT COALESCE(dp.id, 0), sm.path, sm.webpath, sm.size, sm.duration, sm.width, sm.height, sm.fps,
				sm.video_codecs, sm.audio_codecs, sm.subtitle_codecs, sm.video_count, sm.audio_count, sm.subtitle_count,
				sm.language, sm.tags, sm.title, sm.uploader, sm.view_count, sm.favorite_count, sm.score, sm.upvote_ratio,
				sm.live_status, sm.age_limit, sm.type,
				sm.time_created, sm.time_modified, sm.time_deleted, sm.time_downloaded, sm.time_uploaded,
				sm.download_attempts, sm.error, sm.corruption
			FROM src.media sm
			LEFT JOIN src.playlists sp ON sp.id = sm.playlists_id
			LEFT JOIN main.playlists dp
				ON dp.path = sp.path AND dp.extractor_config = sp.extractor_config
			WHERE true` + where
	case "captions":
		query = `
			INSERT INTO main.captions (media_id, time, text)
			SELECT dm.id, sc.time, sc.text
			FROM src.captions sc
			JOIN src.media sm ON sm.id = sc.media_id
			JOIN main.media dm ON dm.path = sm.path
			WHERE NOT EXISTS (
				SELECT 1 FROM main.captions mc
				WHERE mc.media_id = dm.id AND mc.time = sc.time AND mc.text = sc.text
			)` + where
	case "history":
		query = `
			INSERT INTO main.history (media_id, time_played, playhead, done)
			SELECT dm.id, sh.time_played, sh.playhead, sh.done
			FROM src.history sh
			JOIN src.media sm ON sm.id = sh.media_id
			JOIN main.media dm ON dm.path = sm.path
			WHERE NOT EXISTS (
				SELECT 1 FROM main.history mh
				WHERE mh.media_id = dm.id AND mh.time_played = sh.time_played
			)` + where
	case "blocklist":
		query = `
			INSERT INTO main.blocklist (key, value)
			SELECT key, value FROM src.blocklist sb
			WHERE NOT EXISTS (
				SELECT 1 FROM main.blocklist mb WHERE mb.key = sb.key AND mb.value = sb.value
			)` + where
	default:
		return 0, fmt.Errorf("unknown table %s", table)
	}

	res, err := s.db.Exec(query)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CopyPlayCounts imports playback history from other catalogs, rewriting
// the media path prefix so rows land on this catalog's copies. After all
// sources are processed, history is deduped on (media_id, time_played)
// keeping the lowest id.
func (s *Store) CopyPlayCounts(srcPaths []string, srcPrefix, tgtPrefix string) (int64, error) {
	var copied int64

	for _, srcPath := range srcPaths {
		n, err := s.copyPlayCountsFrom(srcPath, srcPrefix, tgtPrefix)
		if err != nil {
			return copied, fmt.Errorf("failed to copy play counts from %s: %w", srcPath, err)
		}
		copied += n
	}

	if _, err := s.DedupeRows("history", "id", []string{"media_id", "time_played"}, DedupeOpts{}); err != nil {
		return copied, err
	}
	return copied, nil
}

func (s *Store) copyPlayCountsFrom(srcPath, srcPrefix, tgtPrefix string) (int64, error) {
	if _, err := s.db.Exec("ATTACH DATABASE ? AS src", srcPath); err != nil {
		return 0, fmt.Errorf("failed to attach: %w", err)
	}
	defer s.db.Exec("DETACH DATABASE src")

	rows, err := s.db.Query(`
		SELECT sm.path, sh.time_played, COALESCE(sh.playhead, 0), sh.done
		FROM src.history sh
		JOIN src.media sm ON sm.id = sh.media_id
		WHERE sh.time_played > 0 OR COALESCE(sh.playhead, 0) > 0
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to read source history: %w", err)
	}

	type pending struct {
		path       string
		timePlayed int64
		playhead   int64
		done       int
	}
	var events []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.path, &p.timePlayed, &p.playhead, &p.done); err != nil {
			rows.Close()
			return 0, err
		}
		events = append(events, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var copied int64
	for _, ev := range events {
		// Replace only the first occurrence of the prefix
		target := ev.path
		if srcPrefix != "" {
			target = strings.Replace(ev.path, srcPrefix, tgtPrefix, 1)
		}

		var mediaID int64
		err := s.db.QueryRow(
			"SELECT id FROM main.media WHERE path = ? ORDER BY id LIMIT 1", target).Scan(&mediaID)
		if err == sql.ErrNoRows {
			util.DebugLog("No media for play count target %s", target)
			continue
		}
		if err != nil {
			return copied, err
		}

		_, err = s.db.Exec(
			"INSERT INTO main.history (media_id, time_played, playhead, done) VALUES (?, ?, ?, ?)",
			mediaID, ev.timePlayed, nullInt(ev.playhead), ev.done)
		if err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}
