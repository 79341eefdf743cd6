package catalog

import (
	"fmt"
	"strings"
)

// blockableColumns are the media columns a blocklist rule may target
var blockableColumns = map[string]func(*Media) string{
	"path":     func(m *Media) string { return m.Path },
	"webpath":  func(m *Media) string { return m.Webpath },
	"title":    func(m *Media) string { return m.Title },
	"uploader": func(m *Media) string { return m.Uploader },
	"tags":     func(m *Media) string { return m.Tags },
	"language": func(m *Media) string { return m.Language },
}

// BlocklistAdd registers an exclusion rule. key names a media column,
// value is an SQL LIKE pattern (with % wildcards).
func (s *Store) BlocklistAdd(key, value string) error {
	if _, ok := blockableColumns[key]; !ok {
		return fmt.Errorf("blocklist key %q is not a matchable column", key)
	}
	_, err := s.db.Exec("INSERT INTO blocklist (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to insert blocklist rule: %w", err)
	}
	return nil
}

// BlocklistRules returns all exclusion rules
func (s *Store) BlocklistRules() ([]BlockRule, error) {
	rows, err := s.db.Query("SELECT id, key, value FROM blocklist ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query blocklist: %w", err)
	}
	defer rows.Close()

	var rules []BlockRule
	for rows.Next() {
		var r BlockRule
		if err := rows.Scan(&r.ID, &r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan blocklist rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Blocked reports whether any rule matches the row. Rules join via OR.
func Blocked(rules []BlockRule, m *Media) bool {
	for _, r := range rules {
		get, ok := blockableColumns[r.Key]
		if !ok {
			continue
		}
		if likeMatch(r.Value, get(m)) {
			return true
		}
	}
	return false
}

// likeMatch evaluates an SQL LIKE pattern (% and _) case-insensitively
func likeMatch(pattern, value string) bool {
	if pattern == "" {
		return false
	}
	return likeMatchFold(strings.ToLower(pattern), strings.ToLower(value))
}

func likeMatchFold(pattern, value string) bool {
	// Empty pattern matches only empty value
	if pattern == "" {
		return value == ""
	}

	switch pattern[0] {
	case '%':
		// Collapse runs of %
		rest := strings.TrimLeft(pattern, "%")
		if rest == "" {
			return true
		}
		for i := 0; i <= len(value); i++ {
			if likeMatchFold(rest, value[i:]) {
				return true
			}
		}
		return false
	case '_':
		if value == "" {
			return false
		}
		return likeMatchFold(pattern[1:], value[1:])
	default:
		if value == "" || value[0] != pattern[0] {
			return false
		}
		return likeMatchFold(pattern[1:], value[1:])
	}
}
