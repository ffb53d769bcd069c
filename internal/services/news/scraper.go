// Package news scrapes market headlines from the AP News search page.
package news

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/models"
)

var log = logger.New("news")

const (
	DefaultSearchURL   = "https://apnews.com/search"
	DefaultMaxArticles = 3
	DefaultQuery       = "Financial Markets"

	promoSelector = "div.PagePromo-content"
	titleSelector = "span.PagePromoContentIcons-text"
	userAgent     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Scraper AP News search scraper
type Scraper struct {
	searchURL   string
	maxArticles int
	httpClient  *http.Client
	now         func() time.Time
}

// NewScraper creates a scraper; zero values pick the defaults
func NewScraper(searchURL string, maxArticles int, timeout time.Duration) *Scraper {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Scraper{
		searchURL:   searchURL,
		maxArticles: maxArticles,
		httpClient:  &http.Client{Timeout: timeout},
		now:         time.Now,
	}
}

// Search returns up to maxArticles headlines for the query. An empty result
// with a nil error means the page had no recognisable promos.
func (s *Scraper) Search(ctx context.Context, query string) ([]models.Headline, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}

	u, err := url.Parse(s.searchURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid search url", goerr.V("url", s.searchURL))
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build search request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "search request failed", goerr.V("query", query))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected search status", goerr.V("query", query), goerr.V("status", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse search page")
	}

	headlines := ParseHeadlines(doc, s.maxArticles, s.now())
	log.Debug("query %q: %d headlines", query, len(headlines))
	return headlines, nil
}

// ParseHeadlines extracts headline text from the first max promo blocks.
// Promos without a title span are skipped but still count toward max.
func ParseHeadlines(doc *goquery.Document, max int, fetchedAt time.Time) []models.Headline {
	var out []models.Headline
	doc.Find(promoSelector).EachWithBreak(func(i int, promo *goquery.Selection) bool {
		if i >= max {
			return false
		}
		title := promo.Find(titleSelector).First()
		if title.Length() == 0 {
			return true
		}
		text := Normalize(title.Text())
		if text == "" {
			return true
		}
		href, _ := promo.Find("a").First().Attr("href")
		out = append(out, models.Headline{Text: text, URL: href, FetchedAt: fetchedAt})
		return true
	})
	return out
}

// Normalize NFKC-folds text and collapses whitespace
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}
