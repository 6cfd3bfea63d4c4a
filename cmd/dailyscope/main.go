package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "dev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dailyscope",
		Short:         "Rank today's most viral news and Reddit stories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(collectCmd())
	root.AddCommand(topCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())

	return root
}

func collectCmd() *cobra.Command {
	var opts collectOptions

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect, score and rank stories once",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.maxResultsSet = cmd.Flags().Changed("max-results")
			return runCollect(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.sources, "source", nil, "news sites to collect (e.g., bbc,reuters)")
	cmd.Flags().StringSliceVar(&opts.subs, "sub", nil, "subreddits to collect (e.g., news,worldnews)")
	cmd.Flags().StringSliceVar(&opts.sorts, "sort", nil, "reddit listing sorts (hot, rising, top, new)")
	cmd.Flags().IntVar(&opts.maxResults, "max-results", 0, "max stories in the ranking (default: from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "show base points and multiplier per story")
	return cmd
}

func topCmd() *cobra.Command {
	var (
		runID      string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the latest stored ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTop(cmd.Context(), runID, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "show a specific run instead of the latest")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func initCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(path)
		},
	}

	cmd.Flags().StringVar(&path, "path", "config.yaml", "where to write the config")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "dailyscope", version)
		},
	}
}
