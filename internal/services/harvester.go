package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Lllllllleong/paperscraper/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// Source describes how to read one archive site's listing pages.
type Source struct {
	Name string
	// BaseURL is the site origin, e.g. https://pastpapers.co.
	BaseURL string
	// BasePath, when set, is the directory relative hrefs are joined to.
	BasePath      string
	ViewerMarkers []string
	// UnwrapMarker precedes a URL-escaped direct link inside a download wrapper href.
	UnwrapMarker string
	Classifier   *Classifier
}

// Harvester turns listing pages into a PaperGroup.
type Harvester struct {
	source  Source
	fetcher *Fetcher
	retrier *Retrier
	logger  *slog.Logger
}

func NewHarvester(source Source, fetcher *Fetcher, retrier *Retrier, logger *slog.Logger) *Harvester {
	return &Harvester{
		source:  source,
		fetcher: fetcher,
		retrier: retrier,
		logger:  logger.With("source", source.Name),
	}
}

// Harvest fetches one listing page and classifies every anchor on it.
// When two anchors map to the same (variant, kind) the later one wins.
func (h *Harvester) Harvest(ctx context.Context, listingURL string) (models.PaperGroup, error) {
	logCtx := h.logger.With("listingUrl", listingURL)

	var body []byte
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		b, err := h.fetcher.Get(ctx, listingURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: listingURL, Err: fmt.Errorf("failed to parse listing HTML: %w", err)}
	}

	group := models.PaperGroup{}
	anchors := doc.Find("a[href]")
	anchors.Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || h.isViewerLink(href) {
			return
		}

		link, ok := h.unwrap(href)
		if !ok {
			return
		}
		name := fileName(link)
		if !IsCandidate(name) {
			return
		}

		match, ok := h.source.Classifier.Classify(name)
		if !ok {
			logCtx.Debug("Unrecognised file name, skipping.", "file", name)
			return
		}
		resolved, err := h.resolve(link, listingURL)
		if err != nil {
			logCtx.Debug("Could not resolve link, skipping.", "href", link, "error", err)
			return
		}
		group.Set(match.Variant, match.Kind, resolved)
		logCtx.Debug("Found paper.", "variant", match.Variant, "kind", match.Kind, "file", name)
	})

	logCtx.Info("Listing harvested.", "anchors", anchors.Length(), "variants", len(group), "files", group.Count())
	return group, nil
}

// HarvestFirst tries each listing URL in turn and returns the first non-empty result.
// Fetch failures move on to the next URL; if none yields, the result is empty and err is nil.
func (h *Harvester) HarvestFirst(ctx context.Context, urls []string) (models.PaperGroup, error) {
	for _, u := range urls {
		group, err := h.Harvest(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.logger.Warn("Listing URL failed.", "listingUrl", u, "error", err)
			continue
		}
		if len(group) > 0 {
			return group, nil
		}
		h.logger.Warn("No papers found at listing URL.", "listingUrl", u)
	}
	return models.PaperGroup{}, nil
}

func (h *Harvester) isViewerLink(href string) bool {
	for _, marker := range h.source.ViewerMarkers {
		if marker != "" && strings.Contains(href, marker) {
			return true
		}
	}
	return false
}

// unwrap extracts the direct link from a download wrapper. Hrefs without the marker
// are returned as they are.
func (h *Harvester) unwrap(href string) (string, bool) {
	marker := h.source.UnwrapMarker
	if marker == "" {
		return href, true
	}
	i := strings.Index(href, marker)
	if i < 0 {
		return href, true
	}
	inner, err := url.QueryUnescape(href[i+len(marker):])
	if err != nil || inner == "" {
		return "", false
	}
	return inner, true
}

func (h *Harvester) resolve(href, listingURL string) (string, error) {
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return href, nil
	case strings.HasPrefix(href, "//"):
		scheme := "https"
		if u, err := url.Parse(h.source.BaseURL); err == nil && u.Scheme != "" {
			scheme = u.Scheme
		}
		return scheme + ":" + href, nil
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(h.source.BaseURL, "/") + href, nil
	case h.source.BasePath != "":
		return strings.TrimRight(h.source.BaseURL, "/") + "/" + strings.Trim(h.source.BasePath, "/") + "/" + href, nil
	}
	base, err := url.Parse(listingURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// fileName returns the last path segment of a link, ignoring any query or fragment.
func fileName(link string) string {
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		link = u.Path
	}
	if i := strings.LastIndex(link, "/"); i >= 0 {
		link = link[i+1:]
	}
	return link
}
