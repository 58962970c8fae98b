// Package scraper walks index pages and collects links to downloadable
// video files.
package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"

	"github.com/lukudoko/videothing/internal/downloader"
)

// Video file extensions worth collecting from an index page.
var videoExtensions = []string{".avi", ".mpg", ".mkv", ".flv", ".mp4"}

// VideoLink is one downloadable file found on a page.
type VideoLink struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Scrape fetches pageURL and returns every anchor pointing at a video file,
// with the href resolved to an absolute URL and a sanitized display name.
func Scrape(pageURL string) ([]VideoLink, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	c := colly.NewCollector(colly.AllowURLRevisit())

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	})

	var links []VideoLink
	var scrapeErr error

	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || !hasVideoExtension(href) {
				return
			}
			resolved, err := resolveHref(base, href)
			if err != nil {
				slog.Debug("Skipping unparseable link", "href", href, "error", err)
				return
			}
			links = append(links, VideoLink{
				URL:      resolved,
				Filename: downloader.FilenameFromURL(resolved),
			})
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}

	slog.Info("Scraped page", "url", pageURL, "links", len(links))
	return links, nil
}

func hasVideoExtension(href string) bool {
	lower := strings.ToLower(href)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func resolveHref(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
