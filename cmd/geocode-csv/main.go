// 命令行工具：读取带类型行的分隔文件，按地址列批量地理编码后打印结果表与未命中地址
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"geodata/internal/catalog"
	"geodata/internal/config"
	"geodata/internal/geocode"
	"geodata/internal/logger"
	"geodata/internal/plugins"
	"geodata/internal/plugins/filesource"
	"geodata/internal/plugins/tableview"
)

const (
	inputName  = "input"
	outputName = "geocoded"
)

type options struct {
	delimiter   string
	address     string
	fields      [5]string
	prefix      string
	nominatim   string
	userAgent   string
	timeout     time.Duration
	maxInFlight int
	cacheSize   int
	columns     []string
	style       string
}

func main() {
	_ = godotenv.Load(".env")
	logger.Setup()
	if err := newRootCommand(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand：默认值取自环境配置，命令行参数覆盖
func newRootCommand(cfg config.Config) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "geocode-csv FILE",
		Short: "Geocode the address columns of a typed delimited file",
		Long: `Reads a delimited file whose first line holds column labels and whose second line holds
column types (Integer, Double, String, Polygon), resolves one address per row through Nominatim
and prints the rows that resolved with three extra columns: longitude, latitude and contour.`,
		Example: `  # free-text address column
  geocode-csv cities.csv --address City

  # structured address, tab separated
  geocode-csv stores.tsv -d tab --country Country --city Town --street Street`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], o)
		},
		SilenceUsage: true,
	}
	f := cmd.Flags()
	f.StringVarP(&o.delimiter, "delimiter", "d", ",", `field delimiter: a single character, or "tab"`)
	f.StringVar(&o.address, "address", "", "free-text address column")
	for i, name := range geocode.AddressFields {
		f.StringVar(&o.fields[i], flagName(name), "", name+" column of a structured address")
	}
	f.StringVarP(&o.prefix, "prefix", "p", "Location", "label prefix of the appended columns")
	f.StringVar(&o.nominatim, "nominatim-url", cfg.NominatimURL, "Nominatim base URL")
	f.StringVar(&o.userAgent, "user-agent", cfg.NominatimUserAgent, "User-Agent sent to Nominatim")
	f.DurationVar(&o.timeout, "timeout", cfg.GeocodeTimeout, "per-request timeout")
	f.IntVar(&o.maxInFlight, "max-inflight", cfg.GeocodeMaxInFlight, "concurrent lookups, 0 for unlimited")
	f.IntVar(&o.cacheSize, "cache-size", cfg.GeocodeCacheSize, "in-process cache entries")
	f.StringSliceVar(&o.columns, "columns", nil, "columns to print, all when empty")
	f.StringVar(&o.style, "style", "light", "table style")
	cmd.MarkFlagsMutuallyExclusive("address", "country")
	return cmd
}

func flagName(field string) string {
	b := []byte(field)
	b[0] += 'a' - 'A'
	return string(b)
}

func (o *options) selection() (catalog.AddressSelection, error) {
	if o.address != "" {
		return catalog.AddressSelection{FreeText: o.address}, nil
	}
	for _, c := range o.fields {
		if c != "" {
			return catalog.AddressSelection{Fields: o.fields}, nil
		}
	}
	return catalog.AddressSelection{}, errors.New("one of --address or a structured address column is required")
}

func run(cmd *cobra.Command, path string, o *options) error {
	sel, err := o.selection()
	if err != nil {
		return err
	}
	delim, err := filesource.ParseDelimiter(o.delimiter)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	t, err := filesource.Read(f, delim)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	l := logger.L()
	n := geocode.NewNominatim(o.nominatim, &http.Client{Timeout: o.timeout}, o.userAgent, l)
	g := geocode.NewCached(n, l, geocode.NewLRU(o.cacheSize, time.Hour))
	cat := catalog.New(geocode.NewResolver(g, geocode.WithMaxInFlight(o.maxInFlight), geocode.WithLogger(l)), catalog.WithLogger(l))
	if err := cat.Register(inputName, t); err != nil {
		return err
	}
	unresolved, err := cat.GeocodeAppend(cmd.Context(), inputName, outputName, o.prefix, sel)
	if err != nil {
		return err
	}
	out, _ := cat.Get(outputName)

	w := cmd.OutOrStdout()
	params := plugins.Params{tableview.Style: {o.style}}
	if len(o.columns) > 0 {
		params[tableview.Columns] = o.columns
	}
	view, err := tableview.New().Render(out, 0, 0, params)
	if err != nil {
		return err
	}
	if s, ok := view.(string); ok {
		fmt.Fprintln(w, s)
	}
	fmt.Fprintf(w, "resolved %d of %d rows\n", out.RowCount(), t.RowCount())
	if len(unresolved) > 0 {
		fmt.Fprintf(w, "unresolved addresses (%d):\n", len(unresolved))
		for _, a := range unresolved {
			fmt.Fprintf(w, "  %s\n", a)
		}
	}
	return nil
}
