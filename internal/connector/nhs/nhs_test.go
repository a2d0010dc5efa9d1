package nhs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobradar-engine/internal/connector"
)

const resultItem = `
<li>
  <h2><a href="/candidate/jobadvert/%s">%s</a></h2>
  <h3>Acme NHS Trust Leeds LS1 4AP</h3>
  <ul>
    <li>Salary: £28,407 to £34,581 a year</li>
    <li>Date posted: 20 February 2026</li>
    <li>Closing date: 22 March 2026</li>
    <li>Contract type: Permanent</li>
    <li>Working pattern: Full time</li>
  </ul>
</li>`

func resultsPage(page int, totalPages int, refs ...string) string {
	items := ""
	for _, ref := range refs {
		items += fmt.Sprintf(resultItem, ref, "Staff Nurse "+ref)
	}
	nav := ""
	for p := 1; p <= totalPages; p++ {
		nav += fmt.Sprintf(`<a href="/candidate/search/results?page=%d">%d</a>`, p, p)
	}
	return fmt.Sprintf(`<html><body>
<div id="search-results">Showing page %d of %d</div>
<ul>%s</ul>
<nav>%s</nav>
</body></html>`, page, totalPages, items, nav)
}

func newTestScraper(baseURL string) *Scraper {
	return New(Config{Name: "nhs", BaseURL: baseURL, Location: "Leeds", Distance: "20"},
		connector.NewHostLimiter(1000, 1000), zap.NewNop().Sugar())
}

func TestFetchParsesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nurse", r.URL.Query().Get("keyword"))
		assert.Equal(t, "Leeds", r.URL.Query().Get("location"))
		fmt.Fprint(w, resultsPage(1, 1, "C9999-26-0001", "C9999-26-0002"))
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "nurse", 1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	l := got[0]
	assert.Equal(t, "Staff Nurse C9999-26-0001", l.Title)
	assert.Contains(t, l.URL, "/candidate/jobadvert/C9999-26-0001")
	assert.Equal(t, "C9999-26-0001", l.JobRef)
	assert.Contains(t, l.Employer, "Acme NHS Trust")
	assert.Equal(t, "LS1 4AP", l.Location)
	assert.Equal(t, "£28,407 to £34,581 a year", l.Salary)
	assert.Equal(t, "Permanent", l.ContractType)
	assert.Equal(t, "Full time", l.WorkingPattern)
	require.NotNil(t, l.PostedAt)
	assert.Equal(t, 20, l.PostedAt.Day())
	require.NotNil(t, l.ClosingAt)
	assert.Equal(t, "nhs", l.Source)
}

func TestFetchFollowsPaginationAutomatically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, resultsPage(1, 2, "A1", "A2"))
		case "2":
			fmt.Fprint(w, resultsPage(2, 2, "B1", "B2"))
		default:
			fmt.Fprint(w, resultsPage(3, 2))
		}
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "nurse", 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestFetchRespectsMaxPages(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprint(w, resultsPage(1, 5, fmt.Sprintf("P%d", pages)))
	}))
	defer srv.Close()

	got, err := newTestScraper(srv.URL).Fetch(context.Background(), "nurse", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, pages)
}

func TestFetchReportsTemplateDrift(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>We have redesigned our website</h1></body></html>`)
	}))
	defer srv.Close()

	_, err := newTestScraper(srv.URL).Fetch(context.Background(), "nurse", 1)
	require.Error(t, err)
	assert.True(t, connector.IsParse(err), "expected a parse classification, got %v", err)
}

func TestFetchClassifiesNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestScraper(srv.URL).Fetch(context.Background(), "nurse", 1)
	require.Error(t, err)
	assert.True(t, connector.IsNetwork(err), "expected a network classification, got %v", err)
}
