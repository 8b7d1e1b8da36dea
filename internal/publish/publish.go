// Package publish keeps an up-to-date .ics export on disk for every
// configured participant pair.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"catchup/internal/config"
	"catchup/internal/derive"
	"catchup/internal/ics"
	appLog "catchup/internal/log"
	"catchup/internal/participant"
)

// Publisher derives and writes one export per configured pair. Each run
// starts the schedule at the current UTC year, so the refresh on New Year's
// Day rolls every export forward.
type Publisher struct {
	cfg     *config.Config
	deriver derive.Deriver
	now     func() time.Time
}

// Result describes one written export.
type Result struct {
	PairID string
	Path   string
	Events int
}

// New validates the digest before any export is attempted.
func New(cfg *config.Config) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("publish: config is nil")
	}
	d, err := derive.NewNamed(cfg.Digest)
	if err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg, deriver: d, now: time.Now}, nil
}

// PublishAll writes every pair's export. A failing pair is logged and
// reported in the joined error; the remaining pairs are still written.
func (p *Publisher) PublishAll(ctx context.Context) ([]Result, error) {
	now := p.now()
	startYear := derive.CurrentYear(now)

	results := make([]Result, 0, len(p.cfg.Pairs))
	var errs []error
	for _, pc := range p.cfg.Pairs {
		res, err := p.publishOne(ctx, pc, startYear, now)
		if err != nil {
			appLog.Error("publish failed", err, "pair", pc.FileID())
			errs = append(errs, fmt.Errorf("pair %s: %w", pc.FileID(), err))
			continue
		}
		results = append(results, res)
	}

	appLog.Info("publish completed",
		"start_year", startYear,
		"written", len(results),
		"failed", len(errs),
	)
	return results, errors.Join(errs...)
}

func (p *Publisher) publishOne(ctx context.Context, pc config.PairConfig, startYear int, now time.Time) (Result, error) {
	pair, err := participant.Parse(pc.A, pc.B)
	if err != nil {
		return Result{}, err
	}

	s, err := p.deriver.BuildSchedule(ctx, pair, startYear, p.cfg.HorizonYears)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	opts := ics.ExportOptions{ProductID: p.cfg.ProductID, UIDDomain: p.cfg.UIDDomain, Now: now}
	if err := ics.Write(&buf, s, opts); err != nil {
		return Result{}, err
	}

	path := filepath.Join(p.cfg.ExportDir, pc.FileID()+"-"+ics.Filename(s.Horizon()))
	if err := config.WriteFileAtomic(path, buf.Bytes(), ".catchup-export-*.tmp"); err != nil {
		return Result{}, err
	}

	appLog.Debug("export written", "pair", pc.FileID(), "path", path)
	return Result{PairID: pc.FileID(), Path: path, Events: 2 * s.Horizon()}, nil
}

// Run publishes once immediately, then on the configured cron spec (UTC)
// until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(p.cfg.RefreshCron, func() {
		_, _ = p.PublishAll(ctx)
	}); err != nil {
		return fmt.Errorf("publish: refresh %q: %w", p.cfg.RefreshCron, err)
	}

	// Errors are already logged per pair.
	_, _ = p.PublishAll(ctx)

	c.Start()
	appLog.Info("publisher started", "refresh", p.cfg.RefreshCron, "pairs", len(p.cfg.Pairs), "export_dir", p.cfg.ExportDir)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("publisher stopped")
	return nil
}
