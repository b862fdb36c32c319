package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/registrar/pkg/registrar"
	"github.com/randalmurphal/registrar/pkg/registrar/journal"
	"github.com/randalmurphal/registrar/pkg/registrar/traced"
)

// menuItem and styleSheet are what demo extensions contribute.
type menuItem struct {
	Label  string
	Action string
}

type styleSheet struct {
	Name  string
	Rules int
}

// extension owns everything it registered; unloading it releases them all.
type extension struct {
	name    string
	handles registrar.Handles
}

func loadExtension(i int, menu traced.Registry[menuItem], styles traced.Registry[styleSheet]) *extension {
	ext := &extension{name: fmt.Sprintf("ext-%d", i)}
	ext.handles.Add(
		menu.Register(menuItem{Label: ext.name + " Open", Action: "open"}).Generic(),
		menu.Register(menuItem{Label: ext.name + " Close", Action: "close"}).Generic(),
		styles.Register(styleSheet{Name: ext.name + ".css", Rules: i + 1}).Generic(),
	)
	return ext
}

type demoFlags struct {
	workers int
	keep    int
	metrics bool
}

func newDemoCmd(flags *rootFlags) *cobra.Command {
	df := &demoFlags{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Load and unload extensions concurrently while journaling every transition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), flags, df)
		},
	}

	cmd.Flags().IntVar(&df.workers, "workers", 4, "Number of extensions loaded concurrently")
	cmd.Flags().IntVar(&df.keep, "keep", 1, "Number of extensions left loaded until the end")
	cmd.Flags().BoolVar(&df.metrics, "metrics", false, "Print collected OpenTelemetry metrics")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, flags *rootFlags, df *demoFlags) error {
	if df.workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}
	if df.keep < 0 {
		return fmt.Errorf("--keep must not be negative")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := flags.load()
	if err != nil {
		return err
	}

	var reader *sdkmetric.ManualReader
	if df.metrics {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = provider.Shutdown(context.Background()) }()
		otel.SetMeterProvider(provider)
		cfg.Metrics.Enabled = true
	}

	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}

	store, err := cfg.OpenJournal()
	if err != nil {
		return err
	}
	defer store.Close()

	menu := traced.New[menuItem](cfg.TracedOptions("menu", logger)...)
	styles := traced.New[styleSheet](cfg.TracedOptions("styles", logger)...)

	var recorders registrar.Handles
	defer recorders.Release()
	recorders.Add(
		journal.Attach(menu, store, journal.WithLogger(logger),
			journal.WithFormatter(func(m menuItem) string { return m.Label })),
		journal.Attach(styles, store, journal.WithLogger(logger),
			journal.WithFormatter(func(s styleSheet) string { return s.Name })),
	)

	exts := make([]*extension, df.workers)
	g, _ := errgroup.WithContext(ctx)
	for i := range df.workers {
		g.Go(func() error {
			exts[i] = loadExtension(i, menu, styles)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(out, "loaded %d extensions: %d menu items, %d style sheets\n",
		df.workers, menu.Len(), styles.Len())

	g, _ = errgroup.WithContext(ctx)
	for _, ext := range exts[min(df.keep, len(exts)):] {
		g.Go(func() error {
			ext.handles.Release()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "menu: %s\n", menu)
	fmt.Fprintf(out, "styles: %s\n", styles)

	for _, ext := range exts {
		ext.handles.Release()
	}

	records, err := store.List("")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "journaled %d records\n", len(records))

	if reader != nil {
		return printMetrics(ctx, out, reader)
	}
	return nil
}

func printMetrics(ctx context.Context, out io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	lines := []string{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				lines = append(lines, fmt.Sprintf("%s = %d", m.Name, total))
			case metricdata.Histogram[float64]:
				var count uint64
				for _, dp := range data.DataPoints {
					count += dp.Count
				}
				lines = append(lines, fmt.Sprintf("%s count = %d", m.Name, count))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
