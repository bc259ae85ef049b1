package scan

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avenlon/sitepulse/content"
)

// collectPost folds one post into the job's metrics counters. A post that
// disappeared since enumeration is skipped without adjusting TotalPosts, so
// ratios reflect only posts that were actually inspected.
func (e *Engine) collectPost(id int64, m *Metrics) {
	info, err := e.content.Inspect(id)
	if err != nil {
		e.logger.Warnw("Failed to inspect post", "post_id", id, "error", err)
		return
	}
	if info == nil {
		return
	}

	m.TotalPosts++

	if info.Status == content.StatusPublish {
		m.PublishedPosts++
	} else {
		m.DraftPrivatePosts++
	}

	if !info.FeaturedImageValid {
		m.PostsMissingFeaturedImage++
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(info.Content))
	if err != nil {
		// Treat unparseable markup as blank
		m.PostsWithBlankContent++
		return
	}

	if strings.TrimSpace(doc.Text()) == "" {
		m.PostsWithBlankContent++
	}

	if e.cfg.CheckLinks && e.hasBrokenInternalLink(doc) {
		m.PostsWithBrokenLinks++
	}
}

// hasBrokenInternalLink reports whether any internal anchor in the document
// fails to resolve to a published post. External links are never followed.
func (e *Engine) hasBrokenInternalLink(doc *goquery.Document) bool {
	broken := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !e.isInternalLink(href) {
			return true
		}
		status, err := e.content.ResolveLink(href)
		if err != nil {
			e.logger.Warnw("Failed to resolve link", "href", href, "error", err)
			return true
		}
		if status != content.StatusPublish {
			broken = true
			return false
		}
		return true
	})
	return broken
}

// isInternalLink classifies an href as pointing at this site: relative URLs
// and absolute URLs whose host matches the configured site host. Non-web
// schemes (mailto, tel) are external regardless of host.
func (e *Engine) isInternalLink(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return u.Path != "" || u.RawQuery != ""
	}
	return u.Host == e.siteHost
}
