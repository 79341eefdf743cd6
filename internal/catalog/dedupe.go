package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DedupeOpts controls DedupeRows
type DedupeOpts struct {
	// PreferLive keeps a live row over an older soft-deleted one when both
	// share a business key. Only meaningful for tables with time_deleted.
	PreferLive bool
}

// DedupeRows deletes rows whose primary key is not the winner within each
// business-key group. The default winner is MIN(pk); with PreferLive, live
// rows outrank tombstoned ones first. Identifiers are validated before
// interpolation. Returns rows deleted.
func (s *Store) DedupeRows(table, pk string, bk []string, opts DedupeOpts) (int64, error) {
	if !identRe.MatchString(table) || !identRe.MatchString(pk) {
		return 0, fmt.Errorf("invalid identifier")
	}
	if len(bk) == 0 {
		return 0, fmt.Errorf("business key required")
	}
	for _, col := range bk {
		if !identRe.MatchString(col) {
			return 0, fmt.Errorf("invalid identifier %q", col)
		}
	}

	group := strings.Join(bk, ", ")

	var query string
	if opts.PreferLive {
		query = fmt.Sprintf(`
			DELETE FROM %[1]s WHERE %[2]s NOT IN (
				SELECT %[2]s FROM (
					SELECT %[2]s,
						ROW_NUMBER() OVER (
							PARTITION BY %[3]s
							ORDER BY (time_deleted != 0), %[2]s
						) AS rn
					FROM %[1]s
				) WHERE rn = 1
			)
		`, table, pk, group)
	} else {
		query = fmt.Sprintf(`
			DELETE FROM %[1]s WHERE %[2]s NOT IN (
				SELECT MIN(%[2]s) FROM %[1]s GROUP BY %[3]s
			)
		`, table, pk, group)
	}

	res, err := s.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("dedupe failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
