// Package dwp scrapes findajob.dwp.gov.uk search results.
package dwp

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
	defaultBaseURL = "https://findajob.dwp.gov.uk"
	searchPath     = "/search"
	detailsPath    = "/details/"
)

type Config struct {
	Name         string
	BaseURL      string
	Location     string // loc parameter, e.g. "86383" for a place code
	Distance     string // cty radius in miles
	Category     string
	ContractType string // f parameter
	MaxDaysOld   int    // cti: only adverts posted in the last N days
	SortBy       string // sb: "date" or "relevance"
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
func (s *Scraper) Type() string { return "dwp" }

func (s *Scraper) searchParams(keyword string, page int) url.Values {
	params := url.Values{}
	if keyword != "" {
		params.Set("q", keyword)
	}
	params.Set("w", s.cfg.Location)
	if s.cfg.Location == "" {
		params.Del("w")
	}
	if s.cfg.Distance != "" {
		params.Set("cty", s.cfg.Distance)
	}
	if s.cfg.Category != "" {
		params.Set("cat", s.cfg.Category)
	}
	if s.cfg.ContractType != "" {
		params.Set("f", s.cfg.ContractType)
	}
	if s.cfg.MaxDaysOld > 0 {
		params.Set("cti", strconv.Itoa(s.cfg.MaxDaysOld))
	}
	if s.cfg.SortBy != "" {
		params.Set("sb", s.cfg.SortBy)
		params.Set("sd", "down")
	}
	if page > 1 {
		params.Set("p", strconv.Itoa(page))
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
			return out, connector.NetworkErr("dwp search", err)
		}
		doc, err := goquery.NewDocumentFromReader(res.Body)
		res.Body.Close()
		if err != nil {
			return out, connector.ParseErr("dwp search", err)
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

var (
	postedDateRe = regexp.MustCompile(`\d{1,2}\s+\w+\s+\d{4}`)
	salaryRe     = regexp.MustCompile(`£[\d,.]+(?:\s*(?:to|-)\s*£[\d,.]+)?(?:\s*(?:per|a|an)\s+\w+)?`)
)

// parseResults reads the result blocks: an h3 holding the advert link,
// followed by a sibling ul of metadata lines.
func (s *Scraper) parseResults(doc *goquery.Document) ([]domain.Listing, error) {
	now := time.Now().UTC()
	var listings []domain.Listing

	doc.Find("h3").Each(func(_ int, h3 *goquery.Selection) {
		link := h3.Find("a").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		if !strings.Contains(href, detailsPath) {
			return
		}

		abs := href
		if strings.HasPrefix(href, "/") {
			abs = s.cfg.BaseURL + href
		}

		l := domain.Listing{
			URL:       connector.CanonicalURL(abs),
			Title:     connector.CleanText(link.Text()),
			Source:    "dwp",
			FetchedAt: now,
		}
		l.JobRef = refFromDetailsHref(href)

		meta := h3.NextFiltered("ul")
		if meta.Length() == 0 {
			meta = h3.Parent().Find("ul").First()
		}
		meta.Find("li").Each(func(_ int, li *goquery.Selection) {
			text := connector.CleanText(li.Text())
			switch {
			case postedDateRe.MatchString(text) && l.PostedAt == nil && !strings.Contains(text, "£"):
				l.PostedAt = connector.ParsePostedDate(postedDateRe.FindString(text), now)
				// The posted-date line doubles as "date - employer - location".
				if strong := li.Find("strong").First(); strong.Length() > 0 {
					fillEmployerLocation(&l, connector.CleanText(strong.Text()))
				} else if _, rest, ok := strings.Cut(text, " - "); ok {
					fillEmployerLocation(&l, rest)
				}
			case strings.Contains(text, "£"):
				l.Salary = salaryRe.FindString(text)
				if l.Salary == "" {
					l.Salary = text
				}
			case isContractType(text):
				l.ContractType = text
			}
		})

		if p := h3.NextAllFiltered("p").First(); p.Length() > 0 {
			l.Description = connector.CleanText(p.Text())
		}

		listings = append(listings, l)
	})

	if len(listings) == 0 && !looksLikeResultsPage(doc) {
		return nil, connector.ParseErr("dwp results", fmt.Errorf("page does not match expected template"))
	}
	return listings, nil
}

// fillEmployerLocation splits "Employer - Location" text.
func fillEmployerLocation(l *domain.Listing, s string) {
	if emp, loc, ok := strings.Cut(s, " - "); ok {
		l.Employer = strings.TrimSpace(emp)
		l.Location = strings.TrimSpace(loc)
	} else {
		l.Employer = strings.TrimSpace(s)
	}
}

func isContractType(text string) bool {
	low := strings.ToLower(text)
	for _, ct := range []string{"permanent", "contract", "temporary", "apprenticeship", "full time", "part time"} {
		if strings.Contains(low, ct) {
			return true
		}
	}
	return false
}

func looksLikeResultsPage(doc *goquery.Document) bool {
	if doc.Find(`form[action*="search"], #search-results`).Length() > 0 {
		return true
	}
	text := strings.ToLower(doc.Text())
	return strings.Contains(text, "no result") || strings.Contains(text, "jobs found") ||
		strings.Contains(text, "find a job")
}

func refFromDetailsHref(href string) string {
	i := strings.Index(href, detailsPath)
	if i < 0 {
		return ""
	}
	tail := href[i+len(detailsPath):]
	if j := strings.IndexAny(tail, "?/"); j >= 0 {
		tail = tail[:j]
	}
	return tail
}
