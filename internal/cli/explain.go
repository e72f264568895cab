package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/hubsearch/internal/logger"
	"github.com/kailas-cloud/hubsearch/internal/usecase/explain"
)

func newExplainCmd(g *globals) *cobra.Command {
	var (
		queryFile  string
		resultFile string
		now        string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show which predicates of a query a result matches",
		Long: `Evaluate every predicate of a query against one result locally.
With --portal set, group memberships missing from an item result are loaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := readQuery(cmd, queryFile)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, resultFile)
			if err != nil {
				return err
			}
			var res result.Result
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			opts := request.Options{Credential: g.credential()}
			if now != "" {
				if opts.Now, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("--now: %w", err)
				}
			}

			var groups explain.GroupFetcher
			if g.portalURL != "" {
				groups = portal.NewGroupFetcher(g.portalURL, g.fetch)
			}
			ctx := logpkg.ContextWithLogger(cmd.Context(), g.logger)
			ex, err := explain.New(groups).Explain(ctx, res, q, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, ex)
		},
	}
	cmd.Flags().StringVarP(&queryFile, "query", "q", "", "query JSON file, - for stdin")
	cmd.Flags().StringVarP(&resultFile, "result", "r", "", "result JSON file")
	cmd.Flags().StringVar(&now, "now", "", "reference time for relative dates (RFC 3339)")
	return cmd
}
