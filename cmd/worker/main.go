package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &mergeOptions{}

	cmd := &cobra.Command{
		Use:   "worker [flags] FILE.csv...",
		Short: "Merge CSV exports into an existing set of canonical records",
		Long: `Reads the existing records (JSON array), maps every row of the given CSV
files to canonical records, merges them in file order and writes the batch
result as JSON.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.inputs = args
			return runMerge(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.existing, "existing", "e", "", "existing records JSON file")
	flags.StringVarP(&opts.output, "out", "o", "-", "output file for the batch result (- for stdout)")
	flags.StringVar(&opts.source, "source", "", "provenance source label (default: input file extension)")
	flags.StringVar(&opts.configPath, "config", "config/ingest.yaml", "ingest config file")
	flags.BoolVar(&opts.allowCrossZip, "allow-cross-zip", false, "allow merges across ZIP codes")
	flags.BoolVar(&opts.requireAPN, "require-apn", false, "only auto-merge on an APN match")
	flags.BoolVar(&opts.summaryOnly, "summary", false, "write only the batch summary")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine decisions")
	return cmd
}
