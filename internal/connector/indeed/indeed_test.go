package indeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobradar-engine/internal/connector"
)

const mosaicPage = `<html><body>
<script>
window.mosaic.providerData["mosaic-provider-jobcards"] = {"metaData":{"mosaicProviderJobCardsModel":{"results":[
  {"jobkey":"abc123","title":"Data Analyst","company":"Acme Ltd","formattedLocation":"Leeds",
   "salarySnippet":{"text":"£30,000 - £35,000 a year"},"formattedRelativeTime":"3 days ago",
   "jobTypes":["Full-time"],"snippet":"<b>Great</b> role with data."},
  {"jobkey":"def456","title":"BI Developer","company":"Widget plc","formattedLocation":"Remote",
   "salarySnippet":{"text":""},"extractedSalary":{"min":40000,"max":45000,"type":"yearly"},
   "formattedRelativeTime":"Just posted","jobTypes":[],"snippet":""}
]}}};
</script>
</body></html>`

const htmlOnlyPage = `<html><body>
<p>jobs at indeed</p>
<div class="job_seen_beacon">
  <h2>Care Assistant</h2>
  <a href="/rc/clk?jk=xyz789&from=serp">view</a>
  <span data-testid="company-name">Helping Hands</span>
  <div data-testid="text-location">York</div>
</div>
</body></html>`

type routeLog struct {
	mu    sync.Mutex
	paths []string
}

func (rl *routeLog) add(p string) {
	rl.mu.Lock()
	rl.paths = append(rl.paths, p)
	rl.mu.Unlock()
}

func newTestScraper(baseURL string) *Scraper {
	return New(Config{Name: "indeed", BaseURL: baseURL, Location: "Leeds"},
		connector.NewHostLimiter(1000, 1000), zap.NewNop().Sugar())
}

func TestFetchDesktopStageParsesMosaic(t *testing.T) {
	log := &routeLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "<html>landing</html>")
		case "/jobs":
			fmt.Fprint(w, mosaicPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "data analyst", 1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	l := got[0]
	assert.Contains(t, l.URL, "/viewjob?jk=abc123")
	assert.Equal(t, "abc123", l.JobRef)
	assert.Equal(t, "Data Analyst", l.Title)
	assert.Equal(t, "Acme Ltd", l.Employer)
	assert.Equal(t, "Leeds", l.Location)
	assert.Equal(t, "£30,000 - £35,000 a year", l.Salary)
	assert.Equal(t, "Full-time", l.ContractType)
	assert.Equal(t, "Great role with data.", l.Description)
	require.NotNil(t, l.PostedAt)

	// Salary backfilled from the extracted range when the snippet is empty.
	assert.Equal(t, "£40,000 - £45,000 per year", got[1].Salary)

	// Primed the landing page before searching.
	assert.Equal(t, "/", log.paths[0])
}

func TestFetchFallsBackToMobileEndpoint(t *testing.T) {
	log := &routeLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path)
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, "<html>landing</html>")
		case "/jobs":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "<html>verify you are human</html>")
		case "/m/jobs":
			fmt.Fprint(w, mosaicPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "data analyst", 1)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, log.paths, "/m/jobs")
}

func TestFetchBlockedOnAllStages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, "<html>landing</html>")
			return
		}
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html>verify you are human</html>")
	}))
	defer srv.Close()

	_, err := newTestScraper(srv.URL).Fetch(context.Background(), "data analyst", 1)
	require.Error(t, err)
	assert.True(t, connector.IsBlocked(err), "expected a blocked classification, got %v", err)
}

func TestFetchFallsBackToHTMLCards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, "<html>landing</html>")
			return
		}
		fmt.Fprint(w, htmlOnlyPage)
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "care assistant", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	l := got[0]
	assert.Equal(t, "xyz789", l.JobRef)
	assert.Equal(t, "Care Assistant", l.Title)
	assert.Equal(t, "Helping Hands", l.Employer)
	assert.Equal(t, "York", l.Location)
}

func TestFetchReportsTemplateDrift(t *testing.T) {
	// A 200 page with no cards, no search chrome, and no no-match banner
	// is markup drift, not an empty result set.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, "<html>landing</html>")
			return
		}
		fmt.Fprint(w, `<html><body><header>Indeed - job search reimagined</header><p>Try our new app</p></body></html>`)
	}))
	defer srv.Close()

	_, err := newTestScraper(srv.URL).Fetch(context.Background(), "data analyst", 1)
	require.Error(t, err)
	assert.True(t, connector.IsParse(err), "expected a parse classification, got %v", err)
}

func TestEmptyResultsPageIsNotDrift(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, "<html>landing</html>")
			return
		}
		fmt.Fprint(w, `<html><body><form action="/jobs"></form><p>The search did not match any jobs.</p></body></html>`)
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "zzz", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatSalary(t *testing.T) {
	assert.Equal(t, "£40,000 - £45,000 per year", formatSalary(40000, 45000, "yearly"))
	assert.Equal(t, "£12.50 per hour", formatSalary(12.5, 0, "hourly"))
	assert.Equal(t, "", formatSalary(0, 0, "yearly"))
}
