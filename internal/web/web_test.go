package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catchup/internal/config"
	"catchup/internal/ics"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func scheduleQuery(a, b string, extra url.Values) string {
	q := url.Values{"a": {a}, "b": {b}}
	for k, v := range extra {
		q[k] = v
	}
	return q.Encode()
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t, nil).Handler(), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestSchedule_JSON(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/schedule?"+scheduleQuery(" Alice@Example.com", "bob@example.com", nil))

	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Header().Get("Content-Type"), "application/json")

	var resp scheduleResponse
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	req.Equal("alice@example.com", resp.A)
	req.Equal(2025, resp.StartYear)
	req.Equal(10, resp.Horizon)
	req.Len(resp.Years, 10)

	first := resp.Years[0]
	req.Equal(2025, first.Year)
	req.Len(first.Events, 2)
	req.True(time.Date(2025, 8, 22, 17, 0, 0, 0, time.UTC).Equal(first.Events[0].Start))
	req.Equal(time.Hour, first.Events[0].End.Sub(first.Events[0].Start))
	req.Equal("Friday, August 22, 2025 at 05:00 PM UTC", first.Events[0].Display)
	req.Contains(first.Events[1].CalendarURL, "20251122T010000Z")

	for i, y := range resp.Years {
		req.Equal(2025+i, y.Year)
	}
}

func TestSchedule_ICS(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t, nil).Handler()

	rec := get(t, h, "/api/schedule.ics?"+scheduleQuery("alice@example.com", "bob@example.com", url.Values{"start": {"2030"}, "years": {"4"}}))

	req.Equal(http.StatusOK, rec.Code)
	req.Equal(ics.ContentType, rec.Header().Get("Content-Type"))
	req.Equal(`attachment; filename="random-catchup-4-years.ics"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	req.True(strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
	req.Equal(strings.Count(body, "\n"), strings.Count(body, "\r\n"))

	events, err := ics.ReadEvents(strings.NewReader(body))
	req.NoError(err)
	req.Len(events, 8)
	req.Equal(2030, events[0].Start.Year())
	req.Equal(2033, events[7].Start.Year())
}

func TestSchedule_RejectsBadInput(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	cases := map[string]string{
		"empty":        scheduleQuery("", "", nil),
		"not an email": scheduleQuery("not-an-email", "bob@example.com", nil),
		"bad start":    scheduleQuery("alice@example.com", "bob@example.com", url.Values{"start": {"soon"}}),
		"old year":     scheduleQuery("alice@example.com", "bob@example.com", url.Values{"start": {"999"}}),
		"zero years":   scheduleQuery("alice@example.com", "bob@example.com", url.Values{"years": {"0"}}),
		"huge years":   scheduleQuery("alice@example.com", "bob@example.com", url.Values{"years": {"5000"}}),
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/api/schedule", "/api/schedule.ics"} {
				rec := get(t, h, path+"?"+q)
				require.Equal(t, http.StatusBadRequest, rec.Code, path)

				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestBasicAuth(t *testing.T) {
	req := require.New(t)
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	}).Handler()
	target := "/api/schedule?" + scheduleQuery("alice@example.com", "bob@example.com", nil)

	req.Equal(http.StatusOK, get(t, h, "/health").Code)

	rec := get(t, h, target)
	req.Equal(http.StatusUnauthorized, rec.Code)
	req.NotEmpty(rec.Header().Get("WWW-Authenticate"))

	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusUnauthorized, rec.Code)

	r = httptest.NewRequest(http.MethodGet, target, nil)
	r.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusOK, rec.Code)
}

func TestNewServer_RejectsUnknownDigest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Digest = "md5"

	_, err := NewServer(cfg)

	require.Error(t, err)
}
