// Package gcal builds Google Calendar "create event" links for derived
// catch-up instants.
package gcal

import (
	"fmt"
	"net/url"
	"time"

	"catchup/internal/ics"
	"catchup/internal/model"
)

// DefaultBaseURL is the template endpoint that opens a pre-filled event.
const DefaultBaseURL = "https://calendar.google.com/calendar/render"

// EventURL returns a link that pre-fills a one-hour event at start. An empty
// base uses DefaultBaseURL; existing query parameters on base are kept.
func EventURL(base string, p model.Participants, year int, start time.Time) (string, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("gcal: parse base url: %w", err)
	}

	start = start.UTC()
	end := start.Add(model.EventDuration)

	q := u.Query()
	q.Set("action", "TEMPLATE")
	q.Set("text", p.Title())
	q.Set("dates", start.Format(ics.TimeFormat)+"/"+end.Format(ics.TimeFormat))
	q.Set("details", p.Description(year))
	q.Set("add", p.A+","+p.B)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// YearURLs returns the links for both instants of y, in order.
func YearURLs(base string, p model.Participants, y model.YearlyEventPair) ([2]string, error) {
	var out [2]string
	for i, start := range y.Starts() {
		link, err := EventURL(base, p, y.Year, start)
		if err != nil {
			return out, err
		}
		out[i] = link
	}
	return out, nil
}
