package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"invitecal/internal/countdown"
	"invitecal/internal/store"
	"invitecal/internal/tui"
)

func newCountdownCommand(ctx context.Context, opts *globalOptions) *cobra.Command {
	var (
		once bool
		at   string
	)

	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Show the countdown in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			opts.applyLogLevel(cfg)

			loc := cfg.Location()
			tl, err := cfg.Timeline()
			if err != nil {
				return fmt.Errorf("build timeline: %w", err)
			}

			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: want RFC 3339, e.g. 2026-04-18T09:00:00+09:00", at)
				}
				fmt.Fprintln(cmd.OutOrStdout(), tui.Describe(tl.Evaluate(t.In(loc))))
				return nil
			}
			if once {
				now := time.Now().In(loc)
				fmt.Fprintln(cmd.OutOrStdout(), tui.Describe(tl.Evaluate(now)))
				return nil
			}

			var gb tui.GuestbookLister
			if cfg.Store.RemoteURL != "" {
				gb = store.NewRemote(cfg.Store.RemoteURL)
			} else if fileStore, err := store.OpenFile(cfg.Store.Path, cfg.Store.Moderate); err == nil {
				gb = fileStore
			}

			m := tui.NewModel(ctx, tui.Options{
				Title:     cfg.Couple.First + " & " + cfg.Couple.Second,
				Holder:    countdown.NewHolder(tl),
				Clock:     countdown.SystemClock{Location: loc},
				Guestbook: gb,
			})
			_, err = tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("run TUI: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "print one evaluation and exit")
	cmd.Flags().StringVar(&at, "at", "", "evaluate this instant (RFC 3339) instead of now; implies --once")
	return cmd
}
