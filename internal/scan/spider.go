package scan

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/franz/media-librarian/internal/catalog"
	"github.com/franz/media-librarian/internal/pathutil"
	"github.com/franz/media-librarian/internal/util"
	"github.com/franz/media-librarian/internal/web"
)

// SpiderOpts controls the web-folder crawl
type SpiderOpts struct {
	PlaylistID int64
	MaxPages   int // pages fetched per run, 0 = no limit
}

// SpiderResult summarizes one crawl
type SpiderResult struct {
	Pages  int
	Known  int
	Added  int
	Queued int
}

// indexPageRe matches directory-index URLs that are worth parsing even
// without a content-type check
var indexPageRe = regexp.MustCompile(`(?i)(/|index\.html?|index\.php)$`)

// Spider crawls web folders breadth-first from the given roots. Index
// pages are parsed for inner links; leaf links inside the tree are
// persisted as pending media. Each round is shuffled so page limits spread
// across branches instead of exhausting the first one.
func Spider(ctx context.Context, session *web.Session, store *catalog.Store, roots []string, opts SpiderOpts) (*SpiderResult, error) {
	result := &SpiderResult{}
	seen := map[string]bool{}

	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		r = pathutil.StripIndexSort(r)
		if !seen[r] {
			seen[r] = true
			queue = append(queue, r)
		}
	}
	isRoot := toSet(queue)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		rand.Shuffle(len(queue), func(i, j int) { queue[i], queue[j] = queue[j], queue[i] })
		var next []string

		for _, page := range queue {
			if opts.MaxPages > 0 && result.Pages >= opts.MaxPages {
				util.InfoLog("Spider page limit reached (%d)", opts.MaxPages)
				return result, nil
			}
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			if !isRoot[page] && !indexPageRe.MatchString(page) && !isHTML(ctx, session, page) {
				continue
			}

			links, err := pageLinks(ctx, session, page)
			if err != nil {
				util.WarnLog("Failed to crawl %s: %v", page, err)
				continue
			}
			result.Pages++

			for _, link := range links {
				link = pathutil.StripIndexSort(link)
				if seen[link] {
					result.Known++
					continue
				}
				seen[link] = true

				if !pathutil.IsSubpath(page, link) {
					continue
				}

				known, err := store.Exists(link)
				if err != nil {
					return result, err
				}
				if known {
					result.Known++
					continue
				}

				if looksLikeIndex(ctx, session, link) {
					next = append(next, link)
					result.Queued++
					continue
				}

				entry := &catalog.Media{
					PlaylistsID: opts.PlaylistID,
					Path:        link,
					Title:       titleFromURL(link),
					Corruption:  -1,
				}
				if err := store.MediaAdd(entry); err != nil {
					return result, err
				}
				result.Added++
			}
		}
		queue = next
	}

	util.InfoLog("Spider finished: %d pages, %d added, %d known", result.Pages, result.Added, result.Known)
	return result, nil
}

// pageLinks fetches a page and resolves its anchors to absolute URLs
func pageLinks(ctx context.Context, session *web.Session, page string) ([]string, error) {
	resp, err := session.Get(ctx, page, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s returned %s", page, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", page, err)
	}

	base, err := url.Parse(page)
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		links = append(links, abs.String())
	})
	return links, nil
}

// looksLikeIndex decides whether a link is a subfolder page to descend
// into. URL shape first, HEAD content-type as the tie-breaker.
func looksLikeIndex(ctx context.Context, session *web.Session, link string) bool {
	if indexPageRe.MatchString(link) {
		return true
	}
	// Links with media-looking extensions are leaves; no need for a HEAD
	if ext := extOf(link); ext != "" && ext != ".html" && ext != ".htm" && ext != ".php" {
		return false
	}
	return isHTML(ctx, session, link)
}

func isHTML(ctx context.Context, session *web.Session, link string) bool {
	resp, err := session.Head(ctx, link)
	if err != nil {
		return false
	}
	return strings.Contains(resp.Header.Get("Content-Type"), "text/html")
}

func extOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	p := u.Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return strings.ToLower(p[i:])
	}
	return ""
}

// titleFromURL decodes the last path segment into a readable title
func titleFromURL(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	seg := u.Path
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	return pathutil.URLDecode(seg)
}
