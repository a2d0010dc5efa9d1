// Package nhs scrapes the jobs.nhs.uk candidate search results pages.
package nhs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobradar-engine/internal/connector"
	"jobradar-engine/internal/domain"
)

const (
	defaultBaseURL = "https://www.jobs.nhs.uk"
	searchPath     = "/candidate/search/results"
	advertPath     = "/candidate/jobadvert/"
)

type Config struct {
	Name           string
	BaseURL        string // overridable for tests
	Location       string
	Distance       string
	ContractType   string
	WorkingPattern string
	StaffGroup     string
}

type Scraper struct {
	cfg     Config
	session *connector.Session
	log     *zap.SugaredLogger
}

func New(cfg Config, limiter *connector.HostLimiter, log *zap.SugaredLogger) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Scraper{
		cfg:     cfg,
		session: connector.NewSession(connector.PlainProfile(), limiter),
		log:     log,
	}
}

func (s *Scraper) Name() string { return s.cfg.Name }
func (s *Scraper) Type() string { return "nhs" }

func (s *Scraper) searchParams(keyword string, page int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if keyword != "" {
		params.Set("keyword", keyword)
	}
	if s.cfg.Location != "" {
		params.Set("location", s.cfg.Location)
	}
	if s.cfg.Distance != "" {
		params.Set("distance", s.cfg.Distance)
	}
	for _, ct := range splitCSV(s.cfg.ContractType) {
		params.Add("contractType", ct)
	}
	for _, wp := range splitCSV(s.cfg.WorkingPattern) {
		params.Add("workingPattern", wp)
	}
	if s.cfg.StaffGroup != "" {
		params.Set("staffGroup", s.cfg.StaffGroup)
	}
	return params
}

func (s *Scraper) Fetch(ctx context.Context, keyword string, maxPages int) ([]domain.Listing, error) {
	autoPages := maxPages == 0
	pagesLimit := maxPages
	if autoPages {
		pagesLimit = 999
	}

	var out []domain.Listing
	for page := 1; page <= pagesLimit; page++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		res, err := s.session.Get(ctx, s.cfg.BaseURL+searchPath, s.searchParams(keyword, page))
		if err != nil {
			return out, connector.NetworkErr("nhs search", err)
		}
		doc, err := goquery.NewDocumentFromReader(res.Body)
		res.Body.Close()
		if err != nil {
			return out, connector.ParseErr("nhs search", err)
		}

		if page == 1 && autoPages {
			pagesLimit = totalPages(doc)
			s.log.Debugw("detected result pages", "source", s.cfg.Name, "pages", pagesLimit)
		}

		listings, err := s.parseResults(doc)
		if err != nil {
			return out, err
		}
		if len(listings) == 0 {
			break
		}
		out = append(out, listings...)
		s.log.Debugw("fetched page", "source", s.cfg.Name, "keyword", keyword,
			"page", page, "listings", len(listings), "total", len(out))
	}

	return out, nil
}

var pageParamRe = regexp.MustCompile(`[?&]page=(\d+)`)
var ofPagesRe = regexp.MustCompile(`(?i)(?:of|/)\s*(\d+)\s*(?:pages?|results?)?`)

// totalPages extracts the page count from pagination links, falling back
// to "of N" text. Returns at least 1.
func totalPages(doc *goquery.Document) int {
	maxPage := 1
	doc.Find(`nav a, .pagination a, a[href*="page="]`).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			if m := pageParamRe.FindStringSubmatch(href); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
					maxPage = n
				}
			}
		}
		if t := connector.CleanText(a.Text()); t != "" {
			if n, err := strconv.Atoi(t); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	for _, m := range ofPagesRe.FindAllStringSubmatch(doc.Text(), -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 2 && n <= 500 && n > maxPage {
			maxPage = n
		}
	}
	return maxPage
}

var postcodeRe = regexp.MustCompile(`([A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2})\s*$`)

// parseResults walks the result list items. A page with no job links at
// all and no recognizable search chrome means the markup drifted, which
// is a parse failure, not an empty result set.
func (s *Scraper) parseResults(doc *goquery.Document) ([]domain.Listing, error) {
	now := time.Now().UTC()
	var listings []domain.Listing

	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		link := li.Find("h2 > a").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		if !strings.Contains(href, advertPath) {
			return
		}

		abs := href
		if strings.HasPrefix(href, "/") {
			abs = s.cfg.BaseURL + href
		}

		l := domain.Listing{
			URL:       connector.CanonicalURL(abs),
			Title:     connector.CleanText(link.Text()),
			Source:    "nhs",
			FetchedAt: now,
		}
		l.JobRef = jobRefFromHref(href)

		// Employer and location share an h3; a trailing UK postcode marks
		// where the location starts.
		if h3 := li.Find("h3").First(); h3.Length() > 0 {
			full := connector.CleanText(h3.Text())
			if m := postcodeRe.FindStringIndex(full); m != nil {
				l.Location = strings.TrimSpace(full[m[0]:])
				l.Employer = strings.TrimSpace(full[:m[0]])
			} else {
				l.Employer = full
			}
		}

		li.Find("li").Each(func(_ int, meta *goquery.Selection) {
			text := connector.CleanText(meta.Text())
			switch {
			case strings.HasPrefix(text, "Salary:"):
				l.Salary = strings.TrimSpace(strings.TrimPrefix(text, "Salary:"))
			case strings.HasPrefix(text, "Date posted:"):
				l.PostedAt = connector.ParsePostedDate(strings.TrimPrefix(text, "Date posted:"), now)
			case strings.HasPrefix(text, "Closing date:"):
				l.ClosingAt = connector.ParsePostedDate(strings.TrimPrefix(text, "Closing date:"), now)
			case strings.HasPrefix(text, "Contract type:"):
				l.ContractType = strings.TrimSpace(strings.TrimPrefix(text, "Contract type:"))
			case strings.HasPrefix(text, "Working pattern:"):
				l.WorkingPattern = strings.TrimSpace(strings.TrimPrefix(text, "Working pattern:"))
			}
		})

		listings = append(listings, l)
	})

	if len(listings) == 0 && !looksLikeResultsPage(doc) {
		return nil, connector.ParseErr("nhs results", fmt.Errorf("page does not match expected template"))
	}
	return listings, nil
}

func looksLikeResultsPage(doc *goquery.Document) bool {
	if doc.Find(`#search-results, [id*="search"], form[action*="search"]`).Length() > 0 {
		return true
	}
	text := strings.ToLower(doc.Text())
	return strings.Contains(text, "no result") || strings.Contains(text, "showing")
}

func jobRefFromHref(href string) string {
	tail := href[strings.LastIndex(href, "/")+1:]
	if i := strings.IndexByte(tail, '?'); i >= 0 {
		tail = tail[:i]
	}
	return tail
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
