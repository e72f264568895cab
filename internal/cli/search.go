package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/domain/result"
	logpkg "github.com/kailas-cloud/hubsearch/internal/logger"
)

func newSearchCmd(g *globals) *cobra.Command {
	var (
		file  string
		pages int
		opts  optionFlags
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a query and print the result pages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := readQuery(cmd, file)
			if err != nil {
				return err
			}
			o, err := opts.options(g.credential())
			if err != nil {
				return err
			}
			svc, err := g.searchService()
			if err != nil {
				return err
			}

			ctx := logpkg.ContextWithLogger(cmd.Context(), g.logger)
			resp, err := svc.Search(ctx, q, o)
			if err != nil {
				return err
			}
			out := []*result.Response[result.Result]{resp}
			for len(out) < pages && resp.HasNext {
				if resp, err = resp.Next(ctx); err != nil {
					return err
				}
				out = append(out, resp)
			}
			g.logger.Debug("search done", zap.Int("pages", len(out)), zap.Int("total", out[0].Total))
			if pages <= 1 {
				return printJSON(cmd, out[0])
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "query", "q", "", "query JSON file, - for stdin")
	cmd.Flags().IntVar(&pages, "pages", 1, "follow next links up to this many pages")
	opts.register(cmd)
	return cmd
}
