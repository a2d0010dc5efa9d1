package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Profile is the client identity a session presents: the full set of
// headers a real browser of that device class sends, not just a
// User-Agent string. Some boards fingerprint on the whole profile.
type Profile struct {
	Name    string
	Headers map[string]string
}

func DesktopProfile() Profile {
	return Profile{
		Name: "desktop",
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			"Accept": "text/html,application/xhtml+xml,application/xml;" +
				"q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-GB,en-US;q=0.9,en;q=0.8",
			"Accept-Encoding":           "gzip, deflate, br",
			"Cache-Control":             "max-age=0",
			"Connection":                "keep-alive",
			"DNT":                       "1",
			"Sec-CH-UA":                 `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
			"Sec-CH-UA-Mobile":          "?0",
			"Sec-CH-UA-Platform":        `"Windows"`,
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		},
	}
}

func MobileProfile() Profile {
	return Profile{
		Name: "mobile",
		Headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (Linux; Android 14; Pixel 8) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "en-GB,en;q=0.9",
			"Accept-Encoding": "gzip, deflate, br",
		},
	}
}

// PlainProfile identifies the engine honestly. The polite boards (NHS,
// DWP) serve it without fuss.
func PlainProfile() Profile {
	return Profile{
		Name: "plain",
		Headers: map[string]string{
			"User-Agent": "JobRadar/1.0 (+local)",
			"Accept":     "text/html,application/xhtml+xml",
		},
	}
}

// Session is one http.Client with a cookie jar and a fixed header
// profile applied to every request. A fresh session means fresh cookies,
// which is what the staged fallback trades on.
type Session struct {
	hc      *http.Client
	profile Profile
	limiter *HostLimiter
	primed  bool
	extra   map[string]string
}

func NewSession(p Profile, limiter *HostLimiter) *Session {
	jar, _ := cookiejar.New(nil)
	return &Session{
		hc:      &http.Client{Jar: jar, Timeout: 30 * time.Second},
		profile: p,
		limiter: limiter,
		extra:   map[string]string{},
	}
}

func (s *Session) SetHeader(k, v string) { s.extra[k] = v }

// Prime visits the landing page once to pick up session cookies before
// searching. Sources with bot defenses reject cookie-less searches.
func (s *Session) Prime(ctx context.Context, landingURL string) error {
	if s.primed {
		return nil
	}
	res, err := s.do(ctx, landingURL, nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
	s.primed = true
	return nil
}

// Get fetches a page, retrying throttling and server-error responses
// with jittered exponential backoff within a bounded budget. The backoff
// sleep is local to this session and never blocks other connectors.
func (s *Session) Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	target := rawURL
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		target = rawURL + sep + params.Encode()
	}

	var res *http.Response
	op := func() error {
		r, err := s.do(ctx, target, nil)
		if err != nil {
			return err
		}
		if retryableStatus(r.StatusCode) {
			io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
			r.Body.Close()
			return fmt.Errorf("status %d", r.StatusCode)
		}
		res = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 8 * time.Second
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Session) do(ctx context.Context, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, body)
	if err != nil {
		return nil, err
	}
	for k, v := range s.profile.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range s.extra {
		req.Header.Set(k, v)
	}
	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, target); err != nil {
			return nil, err
		}
	}
	return s.hc.Do(req)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// LooksBlocked reports whether a response is a bot-defense interstitial
// rather than a real (possibly empty) results page. An empty page is
// treated as end-of-results only after this returns false.
func LooksBlocked(res *http.Response, bodyPreview string) bool {
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests {
		return true
	}
	server := strings.ToLower(res.Header.Get("Server"))
	if strings.Contains(server, "cloudflare") && res.Header.Get("CF-RAY") != "" {
		return true
	}
	low := strings.ToLower(bodyPreview)
	if strings.Contains(low, "/cdn-cgi/") ||
		(strings.Contains(low, "cloudflare") && strings.Contains(low, "checking your browser")) ||
		(strings.Contains(low, "attention required") && strings.Contains(low, "cloudflare")) ||
		strings.Contains(low, "verify you are human") {
		return true
	}
	return false
}
