package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"invitecal/internal/battery"
	"invitecal/internal/capture"
	"invitecal/internal/config"
	"invitecal/internal/convert"
	"invitecal/internal/countdown"
	"invitecal/internal/epd"
	"invitecal/internal/ics"
	appLog "invitecal/internal/log"
	"invitecal/internal/schedule"
	"invitecal/internal/signage"
	"invitecal/internal/store"
	"invitecal/internal/timeline"
	"invitecal/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(ctx context.Context, opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the invitation site, countdown and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}
			opts.applyLogLevel(cfg)
			return serve(ctx, opts, cfg, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(ctx context.Context, opts *globalOptions, cfg *config.Config, listenOverride string) error {
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"theme", cfg.Theme,
		"events", len(cfg.Events),
		"feed", cfg.Feed != nil,
		"preview", cfg.Preview.Enabled,
		"signage", cfg.Signage.Enabled,
		"admin", cfg.AdminEnabled(),
	)

	loc := cfg.Location()
	tl, err := initialTimeline(ctx, cfg, loc)
	if err != nil {
		return err
	}

	holder := countdown.NewHolder(tl)
	runner := countdown.NewRunner(holder, countdown.SystemClock{Location: loc}, countdown.DefaultInterval)

	guestbook, rsvps, err := openStore(cfg)
	if err != nil {
		return err
	}

	var batt battery.Reader
	if cfg.Signage.Enabled {
		batt = battery.Open(ctx, cfg.Signage.BatteryBus, cfg.Signage.BatteryAddr)
	}

	srv, err := web.NewServer(web.Options{
		Config:    cfg,
		Holder:    holder,
		Runner:    runner,
		Guestbook: guestbook,
		RSVPs:     rsvps,
		Battery:   batt,
	})
	if err != nil {
		return fmt.Errorf("build web server: %w", err)
	}

	sched := schedule.New(loc)
	var panel epd.Panel
	if err := registerJobs(sched, cfg, holder, &panel); err != nil {
		return err
	}
	defer func() {
		if panel != nil {
			if err := panel.Close(); err != nil {
				appLog.Error("panel close failed", err)
			}
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = runner.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		err := config.Watch(runCtx, opts.configPath, func(next *config.Config) {
			if listenOverride != "" {
				next.Listen = listenOverride
			}
			reload(opts, srv, holder, next)
		})
		if err != nil {
			appLog.Error("config watcher stopped", err, "path", opts.configPath)
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sched.Start()

	var serveErr error
	select {
	case <-ctx.Done():
		appLog.Info("shutting down")
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	// Stop accepting guests first, then background jobs, then the tick
	// source; open SSE streams end when the runner closes its subscribers.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		appLog.Error("scheduler did not stop in time", err)
	}
	cancel()
	wg.Wait()

	appLog.Info("invitecal exiting")
	return serveErr
}

// initialTimeline prefers the organiser feed when one is configured and
// falls back to the events in the config file.
func initialTimeline(ctx context.Context, cfg *config.Config, loc *time.Location) (*timeline.Timeline, error) {
	if cfg.Feed != nil && cfg.Feed.URL != "" {
		tl, err := feedTimeline(ctx, ics.NewFetcher(cfg.Feed.CacheDir), cfg.Feed.URL, loc)
		if err == nil {
			return tl, nil
		}
		appLog.Error("calendar feed unavailable; using configured events", err)
	}
	tl, err := cfg.Timeline()
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}
	return tl, nil
}

func feedTimeline(ctx context.Context, f *ics.Fetcher, url string, loc *time.Location) (*timeline.Timeline, error) {
	res, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	events, err := ics.ParseTimeline(res.Body, loc)
	if err != nil {
		return nil, err
	}
	return timeline.New(events...)
}

func openStore(cfg *config.Config) (store.Guestbook, store.RSVPs, error) {
	if cfg.Store.RemoteURL != "" {
		remote := store.NewRemote(cfg.Store.RemoteURL)
		appLog.Info("using remote store", "url", cfg.Store.RemoteURL)
		return remote, remote, nil
	}
	fileStore, err := store.OpenFile(cfg.Store.Path, cfg.Store.Moderate)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return fileStore, fileStore, nil
}

// registerJobs adds the feed refresh, preview capture and signage jobs the
// config enables. The signage panel is opened here and handed back so the
// caller can close it.
func registerJobs(sched *schedule.Scheduler, cfg *config.Config, holder *countdown.Holder, panel *epd.Panel) error {
	loc := cfg.Location()

	if cfg.Feed != nil && cfg.Feed.URL != "" {
		fetcher := ics.NewFetcher(cfg.Feed.CacheDir)
		url := cfg.Feed.URL
		err := sched.Add("feed-refresh", cfg.Feed.Refresh, func(ctx context.Context) error {
			tl, err := feedTimeline(ctx, fetcher, url, loc)
			if err != nil {
				// The timeline in effect stays.
				return fmt.Errorf("refresh feed: %w", err)
			}
			holder.Swap(tl)
			appLog.Info("timeline refreshed from feed", "events", tl.Len())
			return nil
		})
		if err != nil {
			return err
		}
	}

	if cfg.Preview.Enabled {
		opts := capture.Options{
			URL:    cfg.BaseURL() + "/",
			Width:  cfg.Preview.Width,
			Height: cfg.Preview.Height,
		}
		path := cfg.Preview.Path
		err := sched.Add("preview", cfg.Preview.Cron, func(ctx context.Context) error {
			return capture.CaptureToFile(ctx, opts, path)
		})
		if err != nil {
			return err
		}
	}

	if cfg.Signage.Enabled {
		g := convert.Geometry{Width: cfg.Signage.Width, Height: cfg.Signage.Height}
		p, err := epd.Open(cfg.Signage.Panel, cfg.Signage.DumpDir, g)
		if err != nil {
			return fmt.Errorf("open signage panel: %w", err)
		}
		*panel = p
		refresher := signage.NewRefresher(cfg.BaseURL()+"/signage", g, p)
		err = sched.Add("signage", cfg.Signage.Cron, func(ctx context.Context) error {
			err := refresher.Refresh(ctx)
			if errors.Is(err, signage.ErrBusy) {
				appLog.Debug("signage refresh skipped; previous one still running")
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// reload applies a changed config file. Settings that need a restart
// (listen address, store, jobs) are only logged.
func reload(opts *globalOptions, srv *web.Server, holder *countdown.Holder, next *config.Config) {
	opts.applyLogLevel(next)

	if next.Feed == nil || next.Feed.URL == "" {
		tl, err := next.Timeline()
		if err != nil {
			appLog.Error("reloaded events are invalid; keeping previous timeline", err)
		} else {
			holder.Swap(tl)
			appLog.Info("timeline reloaded", "events", tl.Len())
		}
	}

	srv.SetConfig(next)
}
