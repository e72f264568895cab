package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hubsearch/internal/backend/ogc"
	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
)

type compiled struct {
	Backend       request.Backend `json:"backend"`
	Path          string          `json:"path"`
	QueryString   string          `json:"queryString"`
	Unsatisfiable bool            `json:"unsatisfiable,omitempty"`
}

func newCompileCmd() *cobra.Command {
	var (
		file string
		opts optionFlags
	)
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the backend requests a query compiles to",
		Long: `Compile a query for the portal and OGC backends without running it.
Backends that cannot serve the target entity are skipped unless --backend
names one explicitly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := readQuery(cmd, file)
			if err != nil {
				return err
			}
			o, err := opts.options(nil)
			if err != nil {
				return err
			}

			var out []compiled
			if o.Backend == "" || o.Backend == request.Portal {
				p, err := portal.Compile(q, o)
				switch {
				case err == nil:
					out = append(out, compiled{request.Portal, p.Path, p.Encode(), q.Unsatisfiable()})
				case o.Backend == request.Portal:
					return err
				}
			}
			if o.Backend == "" || o.Backend == request.OGC {
				p, err := ogc.Compile(q, o)
				switch {
				case err == nil:
					out = append(out, compiled{request.OGC, p.Path(), p.Encode(), q.Unsatisfiable()})
				case o.Backend == request.OGC:
					return err
				}
			}
			if len(out) == 0 {
				return fmt.Errorf("no backend can serve %s", q.TargetEntity)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVarP(&file, "query", "q", "", "query JSON file, - for stdin")
	opts.register(cmd)
	return cmd
}
