package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/corpusgraph/internal/search"
)

// NewGlossaryCommand shows how a query would be expanded against the
// configured synonym glossary, without running a search.
func NewGlossaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "glossary <query>",
		Short:         "show how a query expands against the synonym glossary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := outputFormatterFor(rootOpts, cmd)

			a, err := newApp(rootOpts, 0)
			if err != nil {
				return err
			}
			defer a.Close()

			glossary, err := search.LoadGlossary(a.cfg.GlossaryPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "loading glossary", err)
			}

			expanded, changed := glossary.Expand(args[0])
			return formatter.Success(map[string]any{
				"query":    args[0],
				"expanded": expanded,
				"changed":  changed,
			})
		},
	}
}
