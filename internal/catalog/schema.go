package catalog

// Schema v1 - catalog tables. Timestamps are unix epoch seconds stored as
// integers; 0 means never/unset. time_deleted > 0 tombstones a row without
// removing it.
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Ingestion sources: a directory, site URL, SSH host, or extractor handle
CREATE TABLE IF NOT EXISTS playlists (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT NOT NULL,
  extractor_key TEXT NOT NULL DEFAULT 'Local',
  extractor_config TEXT NOT NULL DEFAULT '{}',
  uploader TEXT,
  title TEXT,
  time_created INTEGER NOT NULL DEFAULT 0,
  time_modified INTEGER NOT NULL DEFAULT 0,
  time_deleted INTEGER NOT NULL DEFAULT 0,
  hours_update_delay INTEGER NOT NULL DEFAULT 70,
  UNIQUE (path, extractor_config)
);

-- One addressable content item; path is a local path or a URL
CREATE TABLE IF NOT EXISTS media (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  playlists_id INTEGER NOT NULL DEFAULT 0,
  path TEXT NOT NULL CHECK (path != ''),
  webpath TEXT,
  size INTEGER,
  duration INTEGER,
  width INTEGER,
  height INTEGER,
  fps REAL,
  video_codecs TEXT,
  audio_codecs TEXT,
  subtitle_codecs TEXT,
  video_count INTEGER,
  audio_count INTEGER,
  subtitle_count INTEGER,
  language TEXT,
  tags TEXT,
  title TEXT,
  uploader TEXT,
  view_count INTEGER,
  favorite_count INTEGER,
  score REAL,
  upvote_ratio REAL,
  live_status TEXT,
  age_limit INTEGER,
  type TEXT,
  time_created INTEGER NOT NULL DEFAULT 0,
  time_modified INTEGER NOT NULL DEFAULT 0,
  time_deleted INTEGER NOT NULL DEFAULT 0,
  time_downloaded INTEGER NOT NULL DEFAULT 0,
  time_uploaded INTEGER,
  download_attempts INTEGER NOT NULL DEFAULT 0,
  error TEXT,
  corruption INTEGER,
  UNIQUE (playlists_id, path)
);

CREATE INDEX IF NOT EXISTS idx_media_path ON media(path);
CREATE INDEX IF NOT EXISTS idx_media_webpath ON media(webpath);
CREATE INDEX IF NOT EXISTS idx_media_time_deleted ON media(time_deleted);

-- Time-coded text: chapters, subtitles, tag blobs (time 0), OCR/ASR output
CREATE TABLE IF NOT EXISTS captions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_id INTEGER NOT NULL REFERENCES media(id) ON DELETE CASCADE,
  time INTEGER NOT NULL DEFAULT 0,
  text TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captions_media_id ON captions(media_id);

-- Playback events; business key is (media_id, time_played)
CREATE TABLE IF NOT EXISTS history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  media_id INTEGER NOT NULL REFERENCES media(id) ON DELETE CASCADE,
  time_played INTEGER NOT NULL DEFAULT 0,
  playhead INTEGER,
  done INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_history_media_id ON history(media_id);

-- Exclusion rules: key is the media column, value an SQL LIKE pattern
CREATE TABLE IF NOT EXISTS blocklist (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  key TEXT NOT NULL,
  value TEXT NOT NULL
);
`

// Schema v2 - query-path indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_playlists_refresh ON playlists(time_deleted, time_modified);
CREATE INDEX IF NOT EXISTS idx_media_playlist_live ON media(playlists_id, time_deleted);
CREATE INDEX IF NOT EXISTS idx_media_download ON media(time_deleted, time_downloaded, download_attempts);
CREATE INDEX IF NOT EXISTS idx_history_business ON history(media_id, time_played);
`

// ftsSchema creates the optional external-content FTS index over the media
// search columns; applied by EnableFTS, not by migration, so the catalog
// works with or without it.
const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS media_fts USING fts5(
  path, webpath, title, tags, uploader, language,
  content='media', content_rowid='id'
);

INSERT INTO media_fts(media_fts) VALUES('rebuild');

CREATE TRIGGER IF NOT EXISTS media_fts_ai AFTER INSERT ON media BEGIN
  INSERT INTO media_fts(rowid, path, webpath, title, tags, uploader, language)
  VALUES (new.id, new.path, new.webpath, new.title, new.tags, new.uploader, new.language);
END;

CREATE TRIGGER IF NOT EXISTS media_fts_ad AFTER DELETE ON media BEGIN
  INSERT INTO media_fts(media_fts, rowid, path, webpath, title, tags, uploader, language)
  VALUES ('delete', old.id, old.path, old.webpath, old.title, old.tags, old.uploader, old.language);
END;

CREATE TRIGGER IF NOT EXISTS media_fts_au AFTER UPDATE ON media BEGIN
  INSERT INTO media_fts(media_fts, rowid, path, webpath, title, tags, uploader, language)
  VALUES ('delete', old.id, old.path, old.webpath, old.title, old.tags, old.uploader, old.language);
  INSERT INTO media_fts(rowid, path, webpath, title, tags, uploader, language)
  VALUES (new.id, new.path, new.webpath, new.title, new.tags, new.uploader, new.language);
END;
`
