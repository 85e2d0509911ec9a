// cmd/check.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/glimpse/internal/observability"
)

func newCheckCmd(f *factories) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verifies the reasoning endpoint is reachable and lists its models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}

			client, err := f.newClient(ctx, cfg.Reasoning(), observability.GetLogger())
			if err != nil {
				return fmt.Errorf("failed to create reasoning client: %w", err)
			}
			status, err := client.Check(ctx)
			if err != nil {
				return fmt.Errorf("reasoning endpoint check failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", status.Provider)
			fmt.Fprintf(out, "Endpoint: %s\n", status.Endpoint)
			fmt.Fprintf(out, "Model:    %s\n", status.Model)
			if len(status.Models) > 0 {
				fmt.Fprintln(out, "Available models:")
				for _, m := range status.Models {
					fmt.Fprintf(out, "  - %s\n", m)
				}
			}
			fmt.Fprintln(out, "Reasoning endpoint OK")
			return nil
		},
	}
}
