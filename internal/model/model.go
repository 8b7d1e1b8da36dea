package model

import (
	"fmt"
	"strings"
	"time"
)

// EventDuration is the length of every exported catch-up event.
const EventDuration = time.Hour

// Participants is a normalized, validated pair of email addresses.
// A organizes the exported events and B is invited to them.
type Participants struct {
	A string
	B string
}

// LocalParts returns the portion of each address before the '@'.
func (p Participants) LocalParts() (string, string) {
	return localPart(p.A), localPart(p.B)
}

// Title is the event summary shared by every export format.
func (p Participants) Title() string {
	a, b := p.LocalParts()
	return fmt.Sprintf("Random Catchup - %s <> %s", a, b)
}

// Description is the event body for a catch-up in the given year.
func (p Participants) Description(year int) string {
	return fmt.Sprintf("Random catch-up call for %d\n\n"+
		"Scheduled via 6monthcatchup - two random times per year to catch up!\n\n"+
		"Participants:\n%s\n%s\n\n"+
		"How you connect is up to you - video call, phone, coffee, etc.",
		year, p.A, p.B)
}

func localPart(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	return local
}

// YearlyEventPair holds the two catch-up start instants derived for one year.
// First is never after Second; both are in UTC.
type YearlyEventPair struct {
	Year   int
	First  time.Time
	Second time.Time
}

// Starts returns First and Second in chronological order.
func (y YearlyEventPair) Starts() [2]time.Time {
	return [2]time.Time{y.First, y.Second}
}

// Schedule is a contiguous run of years in ascending order, starting at
// StartYear.
type Schedule struct {
	Participants Participants
	StartYear    int
	Years        []YearlyEventPair
}

// Horizon is the number of years covered by the schedule.
func (s Schedule) Horizon() int {
	return len(s.Years)
}
