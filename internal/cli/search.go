package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/corpusgraph/internal/search"
	"github.com/roach88/corpusgraph/internal/session"
)

// NewSearchCommand runs one search pipeline invocation against the
// indexed corpus.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var topK int
	var storeIDs []string

	cmd := &cobra.Command{
		Use:           "search <query>",
		Short:         "search the indexed corpus",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(rootOpts, cmd, args[0], topK, storeIDs)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum passages to retrieve (0 = pipeline default)")
	cmd.Flags().StringSliceVar(&storeIDs, "store-id", nil, "index service store ids to query (default: all)")
	return cmd
}

func runSearch(rootOpts *RootOptions, cmd *cobra.Command, query string, topK int, storeIDs []string) error {
	formatter := outputFormatterFor(rootOpts, cmd)

	a, err := newApp(rootOpts, 0)
	if err != nil {
		return err
	}
	defer a.Close()

	pipe := a.searchPipeline(rootOpts)

	sessionID, _ := session.Marker{}.Active()

	req := search.Request{
		Query:      query,
		StoreIDs:   storeIDs,
		TopK:       topK,
		Mode:       search.Mode(rootOpts.Mode),
		Expand:     rootOpts.Expand,
		Rerank:     rootOpts.Rerank,
		Synthesize: rootOpts.Synthesize,
		SessionID:  sessionID,
	}

	res, err := pipe.Run(cmd.Context(), req)
	if err != nil {
		return WrapExitError(ExitFailure, "search failed", err)
	}

	return formatter.Success(res)
}
