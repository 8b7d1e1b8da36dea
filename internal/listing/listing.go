// Package listing renders schedules as human-readable text.
package listing

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"catchup/internal/gcal"
	"catchup/internal/ics"
	"catchup/internal/model"
)

// humanLayout reads like "Friday, August 22, 2025 at 05:00 PM UTC".
const humanLayout = "Monday, January 2, 2006 at 03:04 PM MST"

// FormatTime renders t in UTC for people.
func FormatTime(t time.Time) string {
	return t.UTC().Format(humanLayout)
}

// Options controls optional columns.
type Options struct {
	// Links adds a provider "create event" URL under each instant.
	Links bool
	// BaseURL overrides gcal.DefaultBaseURL.
	BaseURL string
}

// Write prints one row per year with both instants.
func Write(w io.Writer, s model.Schedule, opts Options) error {
	p := s.Participants
	if _, err := fmt.Fprintf(w, "%s (%d years from %d)\n", p.Title(), s.Horizon(), s.StartYear); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Year", "First catch-up", "Second catch-up"})
	table.SetAutoWrapText(false)

	for _, y := range s.Years {
		table.Append([]string{strconv.Itoa(y.Year), FormatTime(y.First), FormatTime(y.Second)})
	}
	table.Render()

	if !opts.Links {
		return nil
	}
	for _, y := range s.Years {
		links, err := gcal.YearURLs(opts.BaseURL, p, y)
		if err != nil {
			return err
		}
		for i, start := range y.Starts() {
			if _, err := fmt.Fprintf(w, "%s  %s\n", start.Format(ics.TimeFormat), links[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvents prints events read back from a calendar document.
func WriteEvents(w io.Writer, events []ics.Event) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Start", "End", "Summary", "Organizer"})
	table.SetAutoWrapText(false)
	for _, ev := range events {
		table.Append([]string{FormatTime(ev.Start), FormatTime(ev.End), ev.Summary, ev.Organizer})
	}
	table.Render()
}
