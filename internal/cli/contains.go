package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/domain/catalog"
	"github.com/kailas-cloud/hubsearch/internal/domain/entity"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/hubsearch/internal/logger"
	cataloguc "github.com/kailas-cloud/hubsearch/internal/usecase/catalog"
	"github.com/kailas-cloud/hubsearch/internal/usecase/containment"
)

func newContainsCmd(g *globals) *cobra.Command {
	var (
		catalogFile string
		ids         []string
		parents     []string
		kind        string
	)
	cmd := &cobra.Command{
		Use:   "contains",
		Short: "Check whether entities are reachable through a catalog",
		Long: `Check each --id against the catalog and then its --parent entities,
innermost first. Parents are entity ids whose catalog is loaded from the portal.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(ids) == 0 {
				return fmt.Errorf("at least one --id is required")
			}
			data, err := readInput(cmd, catalogFile)
			if err != nil {
				return err
			}
			def, err := catalog.FromJSON(data)
			if err != nil {
				return err
			}
			k, err := entity.Parse(kind)
			if err != nil {
				return err
			}
			svc, err := g.searchService()
			if err != nil {
				return err
			}

			var fetcher containment.EntityFetcher
			if g.portalURL != "" {
				fetcher = portal.NewEntityFetcher(g.portalURL, g.fetch, g.credential())
			}
			chain := make([]containment.Descriptor, 0, len(parents))
			for _, p := range parents {
				chain = append(chain, containment.Descriptor{EntityID: p})
			}
			cat := cataloguc.New(def, svc, containment.NewEngine(svc, fetcher), cataloguc.WithParents(chain...))

			ctx := logpkg.ContextWithLogger(cmd.Context(), g.logger)
			opts := containment.Options{EntityKind: k, Search: request.Options{Credential: g.credential()}}
			out := make([]containment.Result, 0, len(ids))
			for _, id := range ids {
				res, err := cat.Contains(ctx, id, opts)
				if err != nil {
					return err
				}
				out = append(out, res)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&catalogFile, "catalog", "c", "", "catalog JSON file, - for stdin")
	cmd.Flags().StringSliceVar(&ids, "id", nil, "identifier to check (repeatable)")
	cmd.Flags().StringSliceVar(&parents, "parent", nil, "enclosing entity id, innermost first (repeatable)")
	cmd.Flags().StringVar(&kind, "kind", string(entity.Item), "entity kind to check")
	return cmd
}
