// Package indeed scrapes uk.indeed.com, which sits behind an aggressive
// bot defense. Fetching works through a ladder of increasingly disposable
// client identities; each stage is tried in order until one yields a page
// that is not an interstitial.
package indeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
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
	defaultBaseURL = "https://uk.indeed.com"
	resultsPerPage = 15
	maxResults     = 1000 // the site stops paginating past this
)

type Config struct {
	Name       string
	BaseURL    string
	Location   string
	Radius     int // miles
	MaxDaysOld int // fromage parameter
	SortBy     string
}

type Scraper struct {
	cfg     Config
	limiter *connector.HostLimiter
	log     *zap.SugaredLogger

	// Desktop session is kept across fetches so primed cookies age
	// naturally; the mobile stages always start fresh.
	desktop *connector.Session
}

func New(cfg Config, limiter *connector.HostLimiter, log *zap.SugaredLogger) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Scraper{
		cfg:     cfg,
		limiter: limiter,
		log:     log,
		desktop: connector.NewSession(connector.DesktopProfile(), limiter),
	}
}

func (s *Scraper) Name() string { return s.cfg.Name }
func (s *Scraper) Type() string { return "indeed" }

func (s *Scraper) searchParams(keyword string, start int) url.Values {
	params := url.Values{}
	params.Set("q", keyword)
	if s.cfg.Location != "" {
		params.Set("l", s.cfg.Location)
	}
	if s.cfg.Radius > 0 {
		params.Set("radius", strconv.Itoa(s.cfg.Radius))
	}
	if s.cfg.MaxDaysOld > 0 {
		params.Set("fromage", strconv.Itoa(s.cfg.MaxDaysOld))
	}
	if s.cfg.SortBy != "" {
		params.Set("sort", s.cfg.SortBy)
	}
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}
	return params
}

func (s *Scraper) Fetch(ctx context.Context, keyword string, maxPages int) ([]domain.Listing, error) {
	pagesLimit := maxPages
	if pagesLimit == 0 || pagesLimit > maxResults/resultsPerPage {
		pagesLimit = maxResults / resultsPerPage
	}

	var out []domain.Listing
	for page := 0; page < pagesLimit; page++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		body, err := s.fetchPage(ctx, keyword, page*resultsPerPage)
		if err != nil {
			return out, err
		}

		listings, err := s.parsePage(body)
		if err != nil {
			return out, err
		}
		if len(listings) == 0 {
			break
		}
		out = append(out, listings...)
		s.log.Debugw("fetched page", "source", s.cfg.Name, "keyword", keyword,
			"page", page+1, "listings", len(listings), "total", len(out))
	}

	return out, nil
}

// fetchPage climbs the fallback ladder:
//  1. the long-lived desktop session with primed cookies
//  2. the mobile endpoint with a fresh anonymous session
//  3. a fresh mobile-browser session against the main endpoint
//
// A stage that transport-fails or comes back as an interstitial hands
// off to the next; only after all three does the source count as
// blocked.
func (s *Scraper) fetchPage(ctx context.Context, keyword string, start int) (string, error) {
	params := s.searchParams(keyword, start)

	if err := s.desktop.Prime(ctx, s.cfg.BaseURL); err != nil {
		s.log.Debugw("desktop prime failed", "source", s.cfg.Name, "err", err)
	} else if body, ok := s.tryStage(ctx, s.desktop, s.cfg.BaseURL+"/jobs", params, "desktop"); ok {
		return body, nil
	}

	mobile := connector.NewSession(connector.MobileProfile(), s.limiter)
	if body, ok := s.tryStage(ctx, mobile, s.cfg.BaseURL+"/m/jobs", params, "mobile-endpoint"); ok {
		return body, nil
	}

	fresh := connector.NewSession(connector.MobileProfile(), s.limiter)
	if err := fresh.Prime(ctx, s.cfg.BaseURL); err != nil {
		s.log.Debugw("fresh prime failed", "source", s.cfg.Name, "err", err)
	}
	if body, ok := s.tryStage(ctx, fresh, s.cfg.BaseURL+"/jobs", params, "fresh-mobile"); ok {
		return body, nil
	}

	return "", connector.BlockedErr("indeed search",
		fmt.Errorf("all fetch stages rejected (start=%d)", start))
}

func (s *Scraper) tryStage(ctx context.Context, sess *connector.Session, endpoint string, params url.Values, stage string) (string, bool) {
	res, err := sess.Get(ctx, endpoint, params)
	if err != nil {
		s.log.Debugw("stage failed", "source", s.cfg.Name, "stage", stage, "err", err)
		return "", false
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		s.log.Debugw("stage read failed", "source", s.cfg.Name, "stage", stage, "err", err)
		return "", false
	}
	body := string(raw)
	if res.StatusCode != http.StatusOK || connector.LooksBlocked(res, body) {
		s.log.Infow("stage blocked", "source", s.cfg.Name, "stage", stage, "status", res.StatusCode)
		return "", false
	}
	return body, true
}

// Search results arrive embedded as JSON in a script tag; the rendered
// HTML cards are a degraded fallback when the blob is missing.
var mosaicRe = regexp.MustCompile(
	`(?s)window\.mosaic\.providerData\["mosaic-provider-jobcards"\]\s*=\s*(\{.+?\});`)

func (s *Scraper) parsePage(body string) ([]domain.Listing, error) {
	if m := mosaicRe.FindStringSubmatch(body); m != nil {
		listings, err := s.parseMosaic(m[1])
		if err == nil {
			return listings, nil
		}
		s.log.Debugw("mosaic blob unreadable, falling back to html", "source", s.cfg.Name, "err", err)
	}
	return s.parseHTML(body)
}

type mosaicData struct {
	MetaData struct {
		MosaicProviderJobCardsModel struct {
			Results []mosaicJob `json:"results"`
		} `json:"mosaicProviderJobCardsModel"`
	} `json:"metaData"`
}

type mosaicJob struct {
	JobKey                string `json:"jobkey"`
	Title                 string `json:"title"`
	Company               string `json:"company"`
	FormattedLocation     string `json:"formattedLocation"`
	SalarySnippet         struct {
		Text string `json:"text"`
	} `json:"salarySnippet"`
	ExtractedSalary *struct {
		Min  float64 `json:"min"`
		Max  float64 `json:"max"`
		Type string  `json:"type"`
	} `json:"extractedSalary"`
	FormattedRelativeTime string   `json:"formattedRelativeTime"`
	JobTypes              []string `json:"jobTypes"`
	Snippet               string   `json:"snippet"`
}

func (s *Scraper) parseMosaic(blob string) ([]domain.Listing, error) {
	var data mosaicData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := data.MetaData.MosaicProviderJobCardsModel.Results
	listings := make([]domain.Listing, 0, len(results))
	for _, r := range results {
		if r.JobKey == "" {
			continue
		}
		l := domain.Listing{
			URL:       connector.CanonicalURL(s.cfg.BaseURL + "/viewjob?jk=" + r.JobKey),
			Title:     connector.CleanText(r.Title),
			Employer:  connector.CleanText(r.Company),
			Location:  connector.CleanText(r.FormattedLocation),
			Salary:    connector.CleanText(r.SalarySnippet.Text),
			PostedAt:  connector.ParsePostedDate(r.FormattedRelativeTime, now),
			JobRef:    r.JobKey,
			Source:    "indeed",
			FetchedAt: now,
		}
		if l.Salary == "" && r.ExtractedSalary != nil {
			l.Salary = formatSalary(r.ExtractedSalary.Min, r.ExtractedSalary.Max, r.ExtractedSalary.Type)
		}
		if len(r.JobTypes) > 0 {
			l.ContractType = strings.Join(r.JobTypes, ", ")
		}
		l.Description = connector.CleanText(stripTags(r.Snippet))
		listings = append(listings, l)
	}
	return listings, nil
}

func (s *Scraper) parseHTML(body string) ([]domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, connector.ParseErr("indeed html", err)
	}

	now := time.Now().UTC()
	seen := map[string]bool{}
	var listings []domain.Listing

	doc.Find(`a[href*="jk="]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		jk := jobKeyFromHref(href)
		if jk == "" || seen[jk] {
			return
		}
		seen[jk] = true

		l := domain.Listing{
			URL:       connector.CanonicalURL(s.cfg.BaseURL + "/viewjob?jk=" + jk),
			JobRef:    jk,
			Source:    "indeed",
			FetchedAt: now,
		}

		card := a.Closest("li, td, div.job_seen_beacon")
		if card.Length() == 0 {
			card = a.Parent()
		}
		l.Title = connector.CleanText(card.Find("h2").First().Text())
		if l.Title == "" {
			l.Title = connector.CleanText(a.Text())
		}
		l.Employer = connector.CleanText(card.Find(`[data-testid="company-name"], .companyName`).First().Text())
		l.Location = connector.CleanText(card.Find(`[data-testid="text-location"], .companyLocation`).First().Text())
		l.Salary = connector.CleanText(card.Find(`[class*="salary"]`).First().Text())

		if l.Title != "" {
			listings = append(listings, l)
		}
	})

	if len(listings) == 0 && !looksLikeResultsPage(doc, body) {
		return nil, connector.ParseErr("indeed html", fmt.Errorf("page does not match expected template"))
	}
	return listings, nil
}

// looksLikeResultsPage distinguishes a genuinely empty result set from a
// redesigned or unexpected template. Real search pages keep the jobcards
// container, the search form, or the explicit no-match banner even when
// zero jobs come back.
func looksLikeResultsPage(doc *goquery.Document, body string) bool {
	if doc.Find(`#mosaic-provider-jobcards, [id*="jobsearch"], form[action*="/jobs"], div.job_seen_beacon`).Length() > 0 {
		return true
	}
	low := strings.ToLower(body)
	return strings.Contains(low, "did not match any jobs") ||
		strings.Contains(low, "no jobs found")
}

func formatSalary(min, max float64, typ string) string {
	if min <= 0 && max <= 0 {
		return ""
	}
	per := ""
	if typ != "" {
		per = " per " + strings.TrimSuffix(strings.ToLower(typ), "ly")
		if typ == "yearly" {
			per = " per year"
		}
	}
	if max > min {
		return fmt.Sprintf("£%s - £%s%s", formatAmount(min), formatAmount(max), per)
	}
	return fmt.Sprintf("£%s%s", formatAmount(min), per)
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return addThousands(strconv.FormatInt(int64(v), 10))
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func addThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

func jobKeyFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if jk := u.Query().Get("jk"); jk != "" {
		return jk
	}
	// Card links sometimes carry the key in the path (/rc/clk?...&jk= or
	// data URLs); a plain substring scan covers those.
	if i := strings.Index(href, "jk="); i >= 0 {
		tail := href[i+3:]
		if j := strings.IndexAny(tail, "&?#"); j >= 0 {
			tail = tail[:j]
		}
		return tail
	}
	return ""
}
