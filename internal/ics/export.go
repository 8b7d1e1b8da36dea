package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"catchup/internal/model"
)

const (
	// ContentType is the MIME type of exported documents.
	ContentType = "text/calendar; charset=utf-8"

	DefaultProductID = "-//6 Month Catchup//Random Scheduler//EN"
	DefaultUIDDomain = "6monthcatchup.github.io"

	// TimeFormat is the compact UTC form used for DTSTART/DTEND and
	// provider links.
	TimeFormat = "20060102T150405Z"
)

// uidNamespace scopes name-based event UIDs to this application.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(DefaultUIDDomain))

// ExportOptions controls the parts of the document that are not derived from
// the schedule itself.
type ExportOptions struct {
	// ProductID is written as PRODID. Defaults to DefaultProductID.
	ProductID string
	// UIDDomain is appended to every UID. Defaults to DefaultUIDDomain.
	UIDDomain string
	// Now is used for DTSTAMP. If zero, time.Now is used.
	Now time.Time
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.UIDDomain == "" {
		o.UIDDomain = DefaultUIDDomain
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC().Truncate(time.Second)
	return o
}

// Filename is the suggested download name for a schedule of horizon years.
func Filename(horizon int) string {
	return fmt.Sprintf("random-catchup-%d-years.ics", horizon)
}

// NewCalendar builds a VCALENDAR holding two VEVENTs per scheduled year, in
// schedule order.
func NewCalendar(s model.Schedule, opts ExportOptions) *ical.Calendar {
	opts = opts.withDefaults()

	cal := ical.NewCalendar()
	cal.SetProductId(opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodRequest)

	p := s.Participants
	title := p.Title()
	for _, y := range s.Years {
		desc := p.Description(y.Year)
		for n, start := range y.Starts() {
			uid := EventUID(p, y.Year, n, opts.UIDDomain)
			addEvent(cal, p, uid, start, title, desc, opts)
		}
	}
	return cal
}

func addEvent(cal *ical.Calendar, p model.Participants, uid string, start time.Time, title, desc string, opts ExportOptions) {
	ev := cal.AddEvent(uid)
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(model.EventDuration))
	ev.SetDtStampTime(opts.Now)
	ev.SetProperty(ical.ComponentPropertyOrganizer, "mailto:"+p.A)
	ev.SetSummary(title)
	ev.SetDescription(desc)

	// The organizer has implicitly accepted; the other participant is invited.
	ev.AddProperty(ical.ComponentPropertyAttendee, "mailto:"+p.A,
		ical.ParticipationRoleReqParticipant,
		ical.ParticipationStatusAccepted,
		rsvp(false),
	)
	ev.AddProperty(ical.ComponentPropertyAttendee, "mailto:"+p.B,
		ical.ParticipationRoleReqParticipant,
		ical.ParticipationStatusNeedsAction,
		rsvp(true),
	)

	ev.SetStatus(ical.ObjectStatusConfirmed)
	ev.SetProperty(ical.ComponentPropertySequence, "0")
}

// rsvp writes RSVP=TRUE/FALSE in the upper-case form calendar clients emit.
func rsvp(want bool) ical.PropertyParameter {
	v := "FALSE"
	if want {
		v = "TRUE"
	}
	return &ical.KeyValues{Key: string(ical.ParameterRsvp), Value: []string{v}}
}

// EventUID is stable for a pair, year and ordinal (0 or 1), so re-importing
// a schedule updates existing events instead of duplicating them. The
// ordinal keeps UIDs distinct when both instants of a year coincide.
func EventUID(p model.Participants, year, n int, domain string) string {
	if domain == "" {
		domain = DefaultUIDDomain
	}
	name := fmt.Sprintf("%s\n%s\n%d\n%d", p.A, p.B, year, n)
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@" + domain
}

// Render serializes the schedule as a CRLF-terminated iCalendar document.
func Render(s model.Schedule, opts ExportOptions) string {
	return NewCalendar(s, opts).Serialize(ical.WithNewLineWindows)
}

// Write streams the rendered document to w.
func Write(w io.Writer, s model.Schedule, opts ExportOptions) error {
	if err := NewCalendar(s, opts).SerializeTo(w, ical.WithNewLineWindows); err != nil {
		return fmt.Errorf("ics: write calendar: %w", err)
	}
	return nil
}
