package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"catchup/internal/config"
	"catchup/internal/derive"
	"catchup/internal/ics"
	"catchup/internal/listing"
	appLog "catchup/internal/log"
	"catchup/internal/participant"
	"catchup/internal/publish"
	"catchup/internal/web"
)

// flagConfig holds CLI flag values before config loading.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool

	a, b      string
	startYear int
	years     int
	out       string
	links     bool

	inspect string
	serve   bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	// Only the long-running server seeds a config file on first use.
	load := config.LoadOrDefault
	if flags.serve {
		load = config.Load
	}
	conf, err := load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case flags.inspect != "":
		err = runInspect(flags.inspect, os.Stdout)
	case flags.serve:
		err = runServe(ctx, conf)
	case flags.a != "" || flags.b != "":
		err = runDerive(ctx, conf, flags, os.Stdout)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		var ie *participant.InvalidInputError
		if errors.As(err, &ie) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		appLog.Error("catchup failed", err)
		os.Exit(1)
	}
}

// runDerive prints the schedule and optionally writes the calendar file.
func runDerive(ctx context.Context, conf *config.Config, flags flagConfig, stdout io.Writer) error {
	pair, err := participant.Parse(flags.a, flags.b)
	if err != nil {
		return err
	}

	d, err := derive.NewNamed(conf.Digest)
	if err != nil {
		return err
	}

	now := time.Now()
	start := flags.startYear
	if start == 0 {
		start = derive.CurrentYear(now)
	}
	years := flags.years
	if years == 0 {
		years = conf.HorizonYears
	}

	sched, err := d.BuildSchedule(ctx, pair, start, years)
	if err != nil {
		return err
	}

	opts := ics.ExportOptions{ProductID: conf.ProductID, UIDDomain: conf.UIDDomain, Now: now}
	switch flags.out {
	case "":
	case "-":
		return ics.Write(stdout, sched, opts)
	default:
		if err := config.WriteFileAtomic(flags.out, []byte(ics.Render(sched, opts)), ".catchup-export-*.tmp"); err != nil {
			return err
		}
		appLog.Info("calendar written", "path", flags.out, "events", 2*sched.Horizon())
	}

	return listing.Write(stdout, sched, listing.Options{Links: flags.links, BaseURL: conf.CalendarURL})
}

func runInspect(path string, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := ics.ReadEvents(f)
	if err != nil {
		return err
	}
	listing.WriteEvents(stdout, events)
	return nil
}

// runServe runs the HTTP API and the export publisher until ctx is done.
func runServe(ctx context.Context, conf *config.Config) error {
	appLog.Info("effective config",
		"listen", conf.Listen,
		"horizon_years", conf.HorizonYears,
		"digest", conf.Digest,
		"refresh", conf.RefreshCron,
		"export_dir", conf.ExportDir,
		"pairs", len(conf.Pairs),
	)

	srv, err := web.NewServer(conf)
	if err != nil {
		return err
	}
	pub, err := publish.New(conf)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if len(conf.Pairs) > 0 {
		g.Go(func() error { return pub.Run(gctx) })
	}

	err = g.Wait()
	appLog.Info("catchup exiting")
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./catchup.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.StringVar(&cfg.a, "a", "", "First participant email (event organizer)")
	flag.StringVar(&cfg.b, "b", "", "Second participant email (invited attendee)")
	flag.IntVar(&cfg.startYear, "start", 0, "First year of the schedule (default: current UTC year)")
	flag.IntVar(&cfg.years, "years", 0, "Number of years (default: config horizon_years)")
	flag.StringVar(&cfg.out, "out", "", `Write the .ics calendar to this path ("-" for stdout)`)
	flag.BoolVar(&cfg.links, "links", false, "Print a Google Calendar link for every event")

	flag.StringVar(&cfg.inspect, "inspect", "", "List the events of an .ics file and exit")
	flag.BoolVar(&cfg.serve, "serve", false, "Run the HTTP API and export publisher")

	flag.Parse()

	return cfg
}
