package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/cargofc/internal/logging"
	"github.com/example/cargofc/internal/matrix"
)

func newMatrixCommand(opts *cliOptions) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:           "matrix",
		Short:         "Print the feature combination matrix as JSON",
		Long: "matrix emits one JSON entry per package and feature combination, shaped\n" +
			"for direct use as a CI job matrix.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(opts.logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			packages, configs, err := selectPackages(cmd.Context(), opts, log)
			if err != nil {
				return err
			}
			entries, err := matrix.Build(packages, configs)
			if err != nil {
				return err
			}
			out, err := matrix.Render(entries, pretty)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}
