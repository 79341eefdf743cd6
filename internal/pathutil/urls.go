package pathutil

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// URLDecode percent-decodes a URL and converts a punycode host back to
// unicode. Decoding an already-decoded URL returns it unchanged.
func URLDecode(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SafeUnquote(raw)
	}

	if host := u.Hostname(); host != "" {
		if decoded, err := idna.ToUnicode(host); err == nil && decoded != "" {
			u.Host = replaceHost(u.Host, host, decoded)
		}
	}

	u.RawPath = ""
	u.Path = SafeUnquote(u.Path)
	if q, err := url.QueryUnescape(u.RawQuery); err == nil {
		u.RawQuery = q
	}

	return u.String()
}

// URLEncode re-encodes a URL: punycode host, percent-escaped path segments.
// Applying it twice yields the same string (decode-then-encode internally).
func URLEncode(raw string) string {
	decoded := URLDecode(raw)
	u, err := url.Parse(decoded)
	if err != nil {
		return raw
	}

	if host := u.Hostname(); host != "" {
		if ascii, err := idna.ToASCII(host); err == nil && ascii != "" {
			u.Host = replaceHost(u.Host, host, ascii)
		}
	}

	segments := strings.Split(u.EscapedPath(), "/")
	for i, seg := range segments {
		if unescaped, err := url.PathUnescape(seg); err == nil {
			segments[i] = url.PathEscape(unescaped)
		}
	}
	u.RawPath = ""
	u.Path = ""
	encoded := u.String() + strings.Join(segments, "/")
	if u.RawQuery != "" {
		encoded += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		encoded += "#" + u.EscapedFragment()
	}
	return encoded
}

// SafeUnquote percent-decodes s, keeping the original when the decoded
// form is broken or contains control characters.
func SafeUnquote(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	for _, r := range decoded {
		if unicode.IsControl(r) {
			return s
		}
	}
	return decoded
}

func replaceHost(full, old, repl string) string {
	if old == repl {
		return full
	}
	return strings.Replace(full, old, repl, 1)
}

// IsSubpath reports whether child lives under parent. It is path-aware:
// "http://x/a" contains "http://x/a/b" but not "http://x" or "http://x/ab".
func IsSubpath(parent, child string) bool {
	p := strings.TrimSuffix(parent, "/")
	if p == "" {
		return false
	}
	return strings.HasPrefix(child, p+"/")
}

// StripIndexSort removes Apache directory-index sort parameters (C=, O=)
// so the same listing sorted differently dedupes to one URL.
func StripIndexSort(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	kept := make([]string, 0, 2)
	for _, pair := range strings.Split(u.RawQuery, "&") {
		key, _, _ := strings.Cut(pair, "=")
		if key == "C" || key == "O" {
			continue
		}
		if pair != "" {
			kept = append(kept, pair)
		}
	}
	u.RawQuery = strings.Join(kept, "&")
	return u.String()
}

// FQDNFromURL returns the full hostname of a URL, or "" if it has none.
func FQDNFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// DomainFromURL returns the hostname with any "www." prefix removed.
func DomainFromURL(raw string) string {
	return strings.TrimPrefix(FQDNFromURL(raw), "www.")
}

// TLDFromURL returns the registrable domain (eTLD+1) of a URL.
func TLDFromURL(raw string) string {
	host := FQDNFromURL(raw)
	if host == "" {
		return ""
	}
	etld, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld
}
