package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// CleanOpts controls filename cleaning
type CleanOpts struct {
	MaxNameLen       int  // byte budget for the filename (0 = 255)
	DotSpace         bool // replace dots in the stem with spaces
	CaseInsensitive  bool // lowercase the whole path
	LowercaseFolders bool // lowercase directory segments only
}

const defaultMaxNameLen = 255

// Ellipsis is inserted mid-stem when a filename exceeds its byte budget
const Ellipsis = "…"

// Clean normalizes a raw path for use as a canonical catalog path.
// It strips control characters, repairs invalid UTF-8, trims leading and
// trailing spaces, dots and hyphens from every segment, and truncates the
// filename stem to the byte budget by inserting an ellipsis mid-string.
// Clean is a projection: Clean(Clean(x)) == Clean(x).
func Clean(raw string, opts CleanOpts) string {
	if raw == "" {
		return ""
	}
	if opts.MaxNameLen <= 0 {
		opts.MaxNameLen = defaultMaxNameLen
	}

	s := repairUTF8(raw)
	s = norm.NFC.String(s)
	s = stripControl(s)

	// Preserve the root: leading separator or UNC \\host prefix
	root := ""
	switch {
	case strings.HasPrefix(s, `\\`):
		root = `\\`
		s = s[2:]
	case strings.HasPrefix(s, "/"):
		root = "/"
		s = strings.TrimLeft(s, "/")
	}

	sep := "/"
	if root == `\\` {
		sep = `\`
	}

	segments := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '\\'
	})

	cleaned := make([]string, 0, len(segments))
	for i, seg := range segments {
		isName := i == len(segments)-1
		seg = strings.Trim(seg, " .-")
		if seg == "" {
			continue
		}
		if isName {
			seg = cleanName(seg, opts)
		} else if opts.LowercaseFolders || opts.CaseInsensitive {
			seg = strings.ToLower(seg)
		}
		if seg != "" {
			cleaned = append(cleaned, seg)
		}
	}

	return root + strings.Join(cleaned, sep)
}

// cleanName trims and truncates the final path segment
func cleanName(name string, opts CleanOpts) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	if opts.DotSpace {
		stem = strings.ReplaceAll(stem, ".", " ")
	}
	if opts.CaseInsensitive {
		stem = strings.ToLower(stem)
		ext = strings.ToLower(ext)
	}
	stem = strings.Trim(stem, " .-")

	budget := opts.MaxNameLen - len(ext)
	if budget < len(Ellipsis)+2 {
		budget = len(Ellipsis) + 2
	}
	if len(stem) > budget {
		stem = truncateMiddle(stem, budget)
	}

	return stem + ext
}

// truncateMiddle shortens s to at most budget bytes, keeping half the budget
// on each side of an inserted ellipsis and never splitting a rune.
func truncateMiddle(s string, budget int) string {
	keep := (budget - len(Ellipsis)) / 2
	if keep < 1 {
		keep = 1
	}

	head := s
	for len(head) > keep {
		_, size := utf8.DecodeLastRuneInString(head)
		head = head[:len(head)-size]
	}

	tail := s[len(s)-keep:]
	for !utf8.ValidString(tail) && len(tail) > 1 {
		tail = tail[1:]
	}

	return head + Ellipsis + tail
}

// repairUTF8 keeps invalid bytes visible as backslash escapes instead of
// dropping them or substituting replacement runes.
func repairUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, `\x%02x`, s[i])
			i++
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
