package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "placecut",
		Short:        "Find real-world places shown as on-screen text in short videos",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", "placecut.toml", "Path to a TOML config file (optional)")

	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newSampleConfigCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web form and JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("bind", "", "Listen address (overrides server.bind)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Run the pipeline once for a video URL and print the locations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0])
		},
	}
	cmd.Flags().Bool("json", false, "Print the JSON response instead of a table")
	cmd.Flags().Int("stride", 0, "Keep every Nth decoded frame (overrides frames.stride)")

	// Hidden tuning flag (internal)
	cmd.Flags().Int("max-frames", 0, "Cap on kept frames (overrides frames.max_frames)")
	_ = cmd.Flags().MarkHidden("max-frames")
	return cmd
}

func newSampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample-config",
		Short: "Print a config file with every default value",
		Args:  cobra.NoArgs,
		RunE:  runSampleConfig,
	}
}
