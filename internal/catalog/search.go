package catalog

import (
	"fmt"
	"strings"

	"github.com/franz/media-librarian/internal/util"
)

// searchColumns is the configured FTS column set over media
var searchColumns = []string{"path", "webpath", "title", "tags", "uploader", "language"}

// EnableFTS builds the external-content FTS index and its sync triggers.
// The catalog works identically without it; queries just fall back to LIKE.
func (s *Store) EnableFTS() error {
	if _, err := s.db.Exec(ftsSchema); err != nil {
		return fmt.Errorf("failed to create FTS index: %w", err)
	}
	util.InfoLog("Full-text index enabled over %s", strings.Join(searchColumns, ", "))
	return nil
}

// HasFTS reports whether the FTS index exists
func (s *Store) HasFTS() bool {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='media_fts'").Scan(&count)
	return err == nil && count > 0
}

// SearchOpts narrows a media search
type SearchOpts struct {
	IncludeDeleted bool
	Limit          int
}

// SearchMedia finds media rows matching the query words. Uses the FTS
// index when present, LIKE bindings otherwise.
func (s *Store) SearchMedia(query string, opts SearchOpts) ([]*Media, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	var where string
	var args []any

	if s.HasFTS() {
		where = "id IN (SELECT rowid FROM media_fts WHERE media_fts MATCH ?)"
		args = append(args, ftsQuote(query))
	} else {
		var err error
		where, args, err = constructSearchBindings(query)
		if err != nil {
			return nil, err
		}
	}

	if !opts.IncludeDeleted {
		where += " AND time_deleted = 0"
	}

	rows, err := s.db.Query(
		"SELECT "+mediaColumns+" FROM media WHERE "+where+" ORDER BY id LIMIT ?",
		append(args, opts.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
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

// constructSearchBindings builds a LIKE-based WHERE clause: every query
// word must match at least one search column.
func constructSearchBindings(query string) (string, []any, error) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return "", nil, fmt.Errorf("empty search query")
	}

	var clauses []string
	var args []any
	for _, word := range words {
		var cols []string
		for _, col := range searchColumns {
			cols = append(cols, col+" LIKE ?")
			args = append(args, "%"+word+"%")
		}
		clauses = append(clauses, "("+strings.Join(cols, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args, nil
}

// ftsQuote wraps each word in double quotes so paths with slashes and dots
// survive the FTS5 query parser.
func ftsQuote(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}
