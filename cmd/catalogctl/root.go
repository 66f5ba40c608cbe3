package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/simp-lee/gemfront/internal/catalog"
)

// queryFlags are shared by every subcommand.
type queryFlags struct {
	configPath string
	view       string
	token      string
	search     string
	filters    []string
	page       int
	pageSize   int
	sort       string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	flags := &queryFlags{}
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Query the gem inventory through the catalog controller",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "configs/config.yaml", "path to configuration file")
	pf.StringVar(&flags.view, "view", "admin", "view whose defaults seed the query")
	pf.StringVar(&flags.token, "token", os.Getenv("GEMFRONT_TOKEN"), "bearer token forwarded to the remote API")
	pf.StringVar(&flags.search, "search", "", "free-text search term")
	pf.StringArrayVar(&flags.filters, "filter", nil, "filter as key=value, repeatable (set: a,b  range: lo..hi  flag: true)")
	pf.IntVar(&flags.page, "page", 0, "page number (default from the view)")
	pf.IntVar(&flags.pageSize, "page-size", 0, "rows per page (default from the view)")
	pf.StringVar(&flags.sort, "sort", "", "sort as field:asc or field:desc")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "how long to wait for the inventory")

	root.AddCommand(newListCmd(flags), newExportCmd(flags))
	return root
}

// values renders the flags as the URL parameters the web grids accept.
// Filter keys must exist in table.
func (f *queryFlags) values(table *catalog.FilterTable) (url.Values, error) {
	q := url.Values{}
	if f.search != "" {
		q.Set("search", f.search)
	}
	if f.page > 0 {
		q.Set("page", strconv.Itoa(f.page))
	}
	if f.pageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.pageSize))
	}
	if f.sort != "" {
		q.Set("sort", f.sort)
	}
	for _, raw := range f.filters {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q: want key=value", raw)
		}
		if _, known := table.Spec(key); !known {
			return nil, fmt.Errorf("unknown filter %q (known: %s)", key, strings.Join(table.Keys(), ", "))
		}
		q.Add(key, value)
	}
	return q, nil
}
