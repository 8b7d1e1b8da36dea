package listing

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catchup/internal/derive"
	"catchup/internal/ics"
	"catchup/internal/model"
)

func TestFormatTime(t *testing.T) {
	got := FormatTime(time.Date(2025, 8, 22, 17, 0, 0, 0, time.UTC))
	require.Equal(t, "Friday, August 22, 2025 at 05:00 PM UTC", got)
}

func TestWrite(t *testing.T) {
	req := require.New(t)
	var d derive.Deriver
	p := model.Participants{A: "alice@example.com", B: "bob@example.com"}
	s, err := d.BuildSchedule(context.Background(), p, 2025, 2)
	req.NoError(err)

	var buf bytes.Buffer
	req.NoError(Write(&buf, s, Options{Links: true}))

	out := buf.String()
	req.True(strings.HasPrefix(out, "Random Catchup - alice <> bob (2 years from 2025)\n"))
	req.Contains(out, "Friday, August 22, 2025 at 05:00 PM UTC")
	req.Contains(out, "2026")
	req.Equal(4, strings.Count(out, "https://calendar.google.com/calendar/render?"))
}

func TestWriteEvents(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2025, 8, 22, 17, 0, 0, 0, time.UTC)

	WriteEvents(&buf, []ics.Event{{
		Summary:   "Random Catchup - alice <> bob",
		Organizer: "alice@example.com",
		Start:     start,
		End:       start.Add(time.Hour),
	}})

	require.Contains(t, buf.String(), "06:00 PM UTC")
	require.Contains(t, buf.String(), "alice@example.com")
}
