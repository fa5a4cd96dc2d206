package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"invitecal/internal/config"
	"invitecal/internal/ics"
)

func newExportICSCommand(_ context.Context, opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write the wedding events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			tl, err := cfg.Timeline()
			if err != nil {
				return fmt.Errorf("build timeline: %w", err)
			}

			body := ics.Export(tl, ics.ExportOptions{
				Title: cfg.Couple.Title(),
				URL:   cfg.BaseURL(),
			})

			if output == "" || output == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			if err := config.WriteFileAtomic(output, []byte(body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d events to %s\n", tl.Len(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
