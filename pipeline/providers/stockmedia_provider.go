package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const stockMediaMaxResults = 6

// StockMediaProvider backs the media stage by scraping a stock footage
// search page for asset URLs.
type StockMediaProvider struct {
	searchURL string // printf template with one %s for the query
	client    *fasthttp.Client
}

func NewStockMediaProvider(searchURL string) *StockMediaProvider {
	if searchURL == "" {
		searchURL = "https://www.pexels.com/search/videos/%s/"
	}
	return &StockMediaProvider{
		searchURL: searchURL,
		client: &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *StockMediaProvider) Invoke(ctx context.Context, stage pipeline.Stage, provider integration.Integration, v *job.Video) error {
	if stage != pipeline.StageMedia {
		return fmt.Errorf("stock media provider does not support stage %s", stage)
	}

	query := firstNonEmpty(v.Topic, v.Title)
	if query == "" {
		return fmt.Errorf("media stage requires a topic or title to search for")
	}

	body, err := p.fetch(fmt.Sprintf(p.searchURL, url.PathEscape(query)))
	if err != nil {
		return fmt.Errorf("media search failed: %w", err)
	}

	urls, err := extractMediaURLs(body)
	if err != nil {
		return fmt.Errorf("media page parse failed: %w", err)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no media found for query %q", query)
	}

	v.Artifacts.MediaURLs = urls
	logrus.Debugf("[PROVIDER:STOCKMEDIA] %d assets found for job %s", len(urls), v.ID)
	return nil
}

func (p *StockMediaProvider) fetch(pageURL string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pageURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent("Mozilla/5.0 (compatible; reelforge/1.0)")

	if err := p.client.Do(req, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// extractMediaURLs pulls video sources and og:image fallbacks out of a
// search results page.
func extractMediaURLs(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || !strings.HasPrefix(u, "http") || seen[u] {
			return
		}
		seen[u] = true
		if len(urls) < stockMediaMaxResults {
			urls = append(urls, u)
		}
	}

	doc.Find("video source[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})
	doc.Find("video[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})
	doc.Find(`meta[property="og:video"], meta[property="og:video:url"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			add(content)
		}
	})
	// Image fallback when the page carries no direct video sources.
	if len(urls) == 0 {
		doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
			if content, ok := s.Attr("content"); ok {
				add(content)
			}
		})
		doc.Find("article img[src], figure img[src]").Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok {
				add(src)
			}
		})
	}
	return urls, nil
}
