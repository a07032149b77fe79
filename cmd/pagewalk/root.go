package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/pagewalk/internal/log"
)

// NewRootCmd creates the root command for pagewalk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagewalk",
		Short: "Crawl a site and record the HTTP status of every page",
		Long: `pagewalk crawls a single site, bounded to a base path, and records the
HTTP status (and redirect target) of every page it reaches.

Results are stored as a JSON file per base URL. A later run resumes from that
file and only fetches pages it has not seen yet; use --force to start over or
--timestamp to write a fresh, dated file. Every run is also kept in a local
history database so two crawls of the same site can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging and list every fetched page")
	cmd.PersistentFlags().String("log-format", "text", "Log format written to stderr: text or json")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting logger selected by --log-format.
func setupLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	verbose := getVerboseFlag(cmd)

	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format = "text"
	}

	switch format {
	case "text", "":
		return log.NewLogger(w, verbose), nil
	case "json":
		return log.NewJSONLogger(w, verbose), nil
	default:
		return nil, fmt.Errorf("unknown log format %q: use text or json", format)
	}
}
