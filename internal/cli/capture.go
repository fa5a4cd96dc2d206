package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"invitecal/internal/capture"
)

func newCaptureCommand(ctx context.Context, opts *globalOptions) *cobra.Command {
	var (
		url     string
		out     string
		signage bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Screenshot the running site to a PNG (share preview or signage)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}

			o := capture.Options{URL: url, Width: cfg.Preview.Width, Height: cfg.Preview.Height}
			if signage {
				o.Width, o.Height = cfg.Signage.Width, cfg.Signage.Height
			}
			if o.URL == "" {
				o.URL = cfg.BaseURL() + "/"
				if signage {
					o.URL = cfg.BaseURL() + "/signage"
				}
			}
			if out == "" {
				out = cfg.Preview.Path
			}

			if err := capture.CaptureToFile(ctx, o, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "captured %s to %s\n", o.URL, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "page to capture (default: the configured site)")
	cmd.Flags().StringVar(&out, "out", "", "PNG output path (default: preview.path)")
	cmd.Flags().BoolVar(&signage, "signage", false, "capture the signage page at the panel resolution")
	return cmd
}
