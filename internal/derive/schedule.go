package derive

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"golang.org/x/sync/errgroup"

	appLog "catchup/internal/log"
	"catchup/internal/model"
)

// DefaultHorizonYears is the schedule length used when none is configured.
const DefaultHorizonYears = 10

// BuildSchedule derives horizon consecutive years starting at startYear.
//
// Years are derived concurrently, but each result lands in the slot for its
// year offset so Years is always ascending. The first failure aborts the
// build and no partial schedule is returned.
func (d Deriver) BuildSchedule(ctx context.Context, p model.Participants, startYear, horizon int) (model.Schedule, error) {
	if horizon < 1 {
		return model.Schedule{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	if err := checkYear(startYear); err != nil {
		return model.Schedule{}, err
	}
	if err := checkYear(startYear + horizon - 1); err != nil {
		return model.Schedule{}, err
	}

	starts, err := yearStarts(startYear, horizon)
	if err != nil {
		return model.Schedule{}, err
	}

	years := make([]model.YearlyEventPair, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	for i, start := range starts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pair, err := d.Derive(p.A, p.B, start.Year())
			if err != nil {
				return fmt.Errorf("derive year %d: %w", start.Year(), err)
			}
			years[i] = pair
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Schedule{}, err
	}

	appLog.Debug("schedule built",
		"start_year", startYear,
		"horizon", horizon,
		"digest", d.Digest().String(),
	)

	return model.Schedule{
		Participants: p,
		StartYear:    startYear,
		Years:        years,
	}, nil
}

// yearStarts expands FREQ=YEARLY;COUNT=n from January 1 of startYear.
func yearStarts(startYear, n int) ([]time.Time, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.YEARLY,
		Count:   n,
		Dtstart: StartOfYear(startYear),
	})
	if err != nil {
		return nil, fmt.Errorf("derive: year recurrence: %w", err)
	}
	starts := r.All()
	if len(starts) != n {
		return nil, fmt.Errorf("derive: year recurrence produced %d years, want %d", len(starts), n)
	}
	return starts, nil
}

// CurrentYear is the UTC calendar year of now.
func CurrentYear(now time.Time) int {
	return now.UTC().Year()
}
