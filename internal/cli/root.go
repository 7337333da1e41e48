package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by every command.
type RootOptions struct {
	ConfigPath  string
	Verbose     bool
	Debug       bool
	Format      string // "json" | "text"
	Mode        string // "learn" | "research"
	Concurrency int    // 0 means "use config default"
	Rerank      bool
	Synthesize  bool
	Expand      bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidModes defines the allowed search modes.
var ValidModes = []string{"learn", "research"}

// NewRootCommand creates the root command for the corpusgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Format: "text", Mode: "learn", Rerank: true, Expand: true}

	cmd := &cobra.Command{
		Use:   "corpusgraph",
		Short: "corpusgraph - ingest and search a curated document corpus",
		Long: `corpusgraph ingests a curated corpus of textual files into an external
managed retrieval service and tracks per-file lifecycle state durably,
then lets you search the indexed corpus, rerank and optionally
synthesize answers, and record research sessions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !isValidMode(opts.Mode) {
				return fmt.Errorf("invalid mode %q: must be one of %v", opts.Mode, ValidModes)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Mode, "mode", "learn", "search mode (learn|research)")
	cmd.PersistentFlags().IntVar(&opts.Concurrency, "concurrency", 0, "worker pool width (0 = config default)")
	cmd.PersistentFlags().BoolVar(&opts.Rerank, "rerank", true, "rerank retrieved passages")
	cmd.PersistentFlags().BoolVar(&opts.Synthesize, "synthesize", false, "synthesize a cited answer")
	cmd.PersistentFlags().BoolVar(&opts.Expand, "expand", true, "expand queries against the synonym glossary")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewGlossaryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func isValidMode(mode string) bool {
	for _, m := range ValidModes {
		if m == mode {
			return true
		}
	}
	return false
}
