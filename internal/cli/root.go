// Package cli implements hubquery, a command-line client that compiles,
// runs and explains hub queries without the HTTP service.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hubsearch/internal/backend"
	"github.com/kailas-cloud/hubsearch/internal/backend/ogc"
	"github.com/kailas-cloud/hubsearch/internal/backend/portal"
	"github.com/kailas-cloud/hubsearch/internal/domain/auth"
	"github.com/kailas-cloud/hubsearch/internal/domain/query"
	"github.com/kailas-cloud/hubsearch/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/hubsearch/internal/logger"
	searchuc "github.com/kailas-cloud/hubsearch/internal/usecase/search"
	"github.com/kailas-cloud/hubsearch/internal/version"
)

// Environment fallbacks for the global flags.
const (
	EnvPortalURL   = "HUBQUERY_PORTAL_URL"
	EnvOGCURL      = "HUBQUERY_OGC_URL"
	EnvPortalToken = "HUBQUERY_TOKEN"
)

// globals are the persistent flags shared by every subcommand.
type globals struct {
	portalURL string
	ogcURL    string
	token     string
	timeout   time.Duration
	verbose   bool

	logger *zap.Logger
	fetch  backend.FetchFunc
}

// NewRootCmd builds the hubquery command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "hubquery",
		Short: "Compile, run and explain hub search queries",
		Long: `hubquery works with the JSON query model shared by the hubsearch service.

Example usage:
  hubquery compile -q query.json            # Show portal and OGC requests
  hubquery search -q query.json --num 20    # Run against the configured backends
  hubquery explain -q query.json -r hit.json
  hubquery contains -c site.json --id 3ef0`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return g.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.portalURL, "portal", os.Getenv(EnvPortalURL), "portal base URL (env "+EnvPortalURL+")")
	pf.StringVar(&g.ogcURL, "ogc", os.Getenv(EnvOGCURL), "OGC API base URL (env "+EnvOGCURL+")")
	pf.StringVar(&g.token, "token", os.Getenv(EnvPortalToken), "portal token (env "+EnvPortalToken+")")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newCompileCmd(),
		newSearchCmd(g),
		newExplainCmd(g),
		newContainsCmd(g),
	)
	return root
}

func (g *globals) init() error {
	level := "warn"
	if g.verbose {
		level = "debug"
	}
	l, err := logpkg.NewLogger("cli", level)
	if err != nil {
		return err
	}
	g.logger = l
	if g.fetch == nil {
		g.fetch = backend.HTTPFetch(&http.Client{Timeout: g.timeout})
	}
	return nil
}

func (g *globals) credential() *auth.Credential {
	if g.token == "" {
		return nil
	}
	return auth.NewCredential(g.portalURL, "", g.token, time.Time{})
}

// searchService wires an executor for every configured backend.
func (g *globals) searchService() (*searchuc.Service, error) {
	if g.portalURL == "" && g.ogcURL == "" {
		return nil, fmt.Errorf("at least one of --portal, --ogc is required")
	}
	var p, o searchuc.Executor
	if g.portalURL != "" {
		p = portal.NewExecutor(g.portalURL, g.fetch)
	}
	if g.ogcURL != "" {
		o = ogc.NewExecutor(g.ogcURL, g.fetch, nil)
	}
	return searchuc.New(p, o), nil
}

// optionFlags are the request.Options flags shared by search commands.
type optionFlags struct {
	backend   string
	num       int
	start     int
	sortField string
	sortOrder string
	fields    []string
	aggFields []string
	aggLimit  int
	include   []string
}

func (o *optionFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.backend, "backend", "", "force backend: portal or ogc")
	f.IntVar(&o.num, "num", request.DefaultNum, "page size")
	f.IntVar(&o.start, "start", request.DefaultStart, "first record (1-based)")
	f.StringVar(&o.sortField, "sort", "", "sort field")
	f.StringVar(&o.sortOrder, "order", "", "sort order: asc or desc")
	f.StringSliceVar(&o.fields, "fields", nil, "properties to return (ogc)")
	f.StringSliceVar(&o.aggFields, "agg", nil, "fields to aggregate")
	f.IntVar(&o.aggLimit, "agg-limit", 0, "buckets per aggregation")
	f.StringSliceVar(&o.include, "include", nil, "related resources, e.g. groups")
}

func (o *optionFlags) options(cred *auth.Credential) (request.Options, error) {
	opts := request.Options{
		Backend:    request.Backend(o.backend),
		Num:        o.num,
		Start:      o.start,
		SortField:  o.sortField,
		SortOrder:  request.SortOrder(o.sortOrder),
		Fields:     o.fields,
		AggFields:  o.aggFields,
		AggLimit:   o.aggLimit,
		Include:    o.include,
		Credential: cred,
	}
	return opts.Normalize()
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("input file is required")
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readQuery(cmd *cobra.Command, path string) (query.Query, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return query.Query{}, err
	}
	return query.Parse(data)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
