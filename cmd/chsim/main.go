package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/lmittmann/tint"
	"github.com/san-kum/chsim/internal/analysis"
	"github.com/san-kum/chsim/internal/automation"
	"github.com/san-kum/chsim/internal/config"
	"github.com/san-kum/chsim/internal/experiment"
	"github.com/san-kum/chsim/internal/export"
	"github.com/san-kum/chsim/internal/metrics"
	"github.com/san-kum/chsim/internal/storage"
	"github.com/san-kum/chsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string

	dx           float64
	dt           float64
	mobility     float64
	aConst       float64
	kConst       float64
	initialValue float64
	noise        float64
	steps        int
	rows         int
	cols         int
	output       string
	animate      bool
	snapEvery    int
	seed         int64
	workers      int
	metricNames  []string
	validate     bool

	configFile string
	preset     string

	svgOut   string
	svgTheme string
	svgScale float64
)

// main registers the commands and runs the interactive launcher when no
// subcommand is given. It exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:               "chsim",
		Short:             "cahn-hilliard phase separation simulator",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".chsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation and write its output directory",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch a simulation in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addParamFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot free energy against step",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "structure factor and field statistics of the final frame",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	svgCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export final frame and energy curve as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVar(&svgOut, "out", "", "output directory (default: run directory)")
	svgCmd.Flags().StringVar(&svgTheme, "theme", "cyberpunk", "colour theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	svgCmd.Flags().Float64Var(&svgScale, "scale", 4, "pixels per lattice site")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		RunE:  listPresets,
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, showCmd, plotCmd, analyzeCmd, svgCmd, presetsCmd, batchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// addParamFlags binds the physical and domain flags shared by run and live.
func addParamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64VarP(&dx, "spatial-discretisation", "x", config.DefaultDx, "lattice spacing")
	f.Float64VarP(&dt, "temporal-discretisation", "t", config.DefaultDt, "time step")
	f.Float64VarP(&mobility, "M-constant", "M", config.DefaultM, "mobility")
	f.Float64VarP(&aConst, "a-constant", "a", config.DefaultA, "bulk free energy constant")
	f.Float64VarP(&kConst, "k-constant", "k", config.DefaultK, "gradient energy constant")
	f.Float64VarP(&initialValue, "initial-value", "v", config.DefaultInitialValue, "mean initial order parameter")
	f.Float64VarP(&noise, "noise", "p", config.DefaultNoise, "initial noise amplitude")
	f.IntVarP(&steps, "steps", "n", config.DefaultSteps, "number of steps")
	f.IntVarP(&rows, "x-range", "r", config.DefaultRows, "lattice width")
	f.IntVarP(&cols, "y-range", "c", config.DefaultCols, "lattice height")
	f.Int64Var(&seed, "seed", 0, "random seed (0: time based)")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})))
	return nil
}

// resolveParams layers the config file, then the preset, then any flag the
// user set explicitly.
func resolveParams(cmd *cobra.Command) (config.Params, error) {
	p := config.DefaultParams()

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return p, fmt.Errorf("failed to load config: %w", err)
		}
		p = cfg
	}

	if preset != "" {
		pr, ok := config.GetPreset(preset)
		if !ok {
			return p, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		p.Dx, p.Dt = pr.Dx, pr.Dt
		p.M, p.A, p.K = pr.M, pr.A, pr.K
		p.InitialValue, p.Noise = pr.InitialValue, pr.Noise
		p.Steps, p.Rows, p.Cols = pr.Steps, pr.Rows, pr.Cols
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}
	set("spatial-discretisation", func() { p.Dx = dx })
	set("temporal-discretisation", func() { p.Dt = dt })
	set("M-constant", func() { p.M = mobility })
	set("a-constant", func() { p.A = aConst })
	set("k-constant", func() { p.K = kConst })
	set("initial-value", func() { p.InitialValue = initialValue })
	set("noise", func() { p.Noise = noise })
	set("steps", func() { p.Steps = steps })
	set("x-range", func() { p.Rows = rows })
	set("y-range", func() { p.Cols = cols })
	set("seed", func() { p.Seed = seed })
	set("output", func() { p.Output = output })
	set("animate", func() { p.Animate = animate })
	set("snapshot-every", func() { p.SnapshotEvery = snapEvery })
	set("workers", func() { p.Workers = workers })
	set("metrics", func() { p.Metrics = metricNames })

	return p, p.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	p, err := resolveParams(cmd)
	if err != nil {
		return err
	}
	if p.Output == "" {
		p.Output = time.Now().Format(config.TimestampLayout)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Print(p.String())

	out, err := newExperiment(p, st).Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("\ncompleted in %v\n", out.Elapsed.Round(time.Millisecond))
	fmt.Printf("run id: %s\n", out.RunID)
	fmt.Printf("output: %s\n", st.Dir(out.RunID))
	fmt.Printf("free energy: %.6g -> %.6g\n", out.Result.InitialEnergy, out.Result.FinalEnergy)

	if len(out.Result.Metrics) > 0 {
		fmt.Println("\nmetrics:")
		names := make([]string, 0, len(out.Result.Metrics))
		for name := range out.Result.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %.6g\n", name, out.Result.Metrics[name])
		}
	}

	return nil
}

func addRunFlags(cmd *cobra.Command) {
	addParamFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory name (default: timestamp)")
	cmd.Flags().BoolVar(&animate, "animate", false, "rewrite lattice.dat with the latest frame periodically")
	cmd.Flags().IntVar(&snapEvery, "snapshot-every", config.DefaultSnapshotEvery, "steps between animation frames")
	cmd.Flags().IntVar(&workers, "workers", 0, "row workers per step (0: serial)")
	cmd.Flags().BoolVar(&validate, "validate-state", false, "stop at the first step that produces NaN or Inf")
	cmd.Flags().StringSliceVar(&metricNames, "metrics", nil, "metrics to track (default: "+strings.Join(metrics.Default, ",")+")")
}

func newExperiment(p config.Params, st *storage.Store) *experiment.Experiment {
	opts := []experiment.Option{experiment.WithLogger(slog.Default())}
	if st != nil {
		opts = append(opts, experiment.WithStore(st))
	}
	if validate {
		opts = append(opts, experiment.WithStateValidation())
	}
	return experiment.New(p, opts...)
}

func runLive(cmd *cobra.Command, args []string) error {
	p, err := resolveParams(cmd)
	if err != nil {
		return err
	}
	return viz.Run(p)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIMESTAMP\tSIZE\tSTEPS\tFINAL ENERGY")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%.6g\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Params.Rows, run.Params.Cols,
			run.Steps,
			run.FinalEnergy,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	return storage.WriteMetadata(os.Stdout, meta)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	points, err := st.LoadEnergy(runID)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no data to plot")
	}

	data := make([]float64, len(points))
	for i, pt := range points {
		data[i] = pt.Energy
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d (steps %d..%d)\n\n", len(points), points[0].Step, points[len(points)-1].Step)

	graph := asciigraph.Plot(data,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("free energy"),
	)
	fmt.Println(graph)

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	l, meta, err := storage.New(dataDir).LoadLattice(runID, storage.FinalFile)
	if err != nil {
		return err
	}

	rep, err := analysis.Analyze(l)
	flat := errors.Is(err, analysis.ErrFlatField)
	if err != nil && !flat {
		return err
	}

	fmt.Printf("structure analysis: %s\n", meta.ID)
	fmt.Printf("lattice: %dx%d after %d steps\n\n", l.Width(), l.Height(), meta.Steps)
	fmt.Printf("mean:        %.6g\n", rep.Mean)
	fmt.Printf("variance:    %.6g\n", rep.Variance)
	fmt.Printf("range:       %.6g .. %.6g\n", rep.Min, rep.Max)
	fmt.Printf("free energy: %.6g\n", rep.Energy)

	if flat {
		fmt.Println("\nfield is flat, no structure to report")
		return nil
	}

	fmt.Printf("peak k:      %.4g\n", rep.PeakK)
	fmt.Printf("length:      %.4g\n\n", rep.Length)

	if len(rep.Bins) > 1 {
		s := make([]float64, len(rep.Bins))
		for i, b := range rep.Bins {
			s[i] = b.S
		}
		fmt.Println(asciigraph.Plot(s,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("S(k), radial average"),
		))
		fmt.Println()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "K\tS(K)\tMODES")
	for _, b := range rep.Bins {
		fmt.Fprintf(w, "%.4f\t%.6g\t%d\n", b.K, b.S, b.Count)
	}
	return w.Flush()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	l, _, err := st.LoadLattice(runID, storage.FinalFile)
	if err != nil {
		return err
	}
	points, err := st.LoadEnergy(runID)
	if err != nil {
		return err
	}

	dir := svgOut
	if dir == "" {
		dir = st.Dir(runID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	theme := viz.GetTheme(svgTheme)
	latticePath := filepath.Join(dir, "final.svg")
	if err := os.WriteFile(latticePath, []byte(export.LatticeToSVG(l, theme, svgScale)), 0644); err != nil {
		return err
	}
	energyPath := filepath.Join(dir, "energy.svg")
	if err := os.WriteFile(energyPath, []byte(export.EnergyToSVG(points, 800, 400, string(theme.Primary))), 0644); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", latticePath)
	fmt.Printf("wrote %s\n", energyPath)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tDX\tDT\tM\tA\tK\tINITIAL\tNOISE\tSTEPS")
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%dx%d\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%d\n",
			name, p.Rows, p.Cols, p.Dx, p.Dt, p.M, p.A, p.K, p.InitialValue, p.Noise, p.Steps)
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}
	fmt.Println()

	runner := &automation.Runner{Store: st, Logger: slog.Default()}
	summaries, sweep, err := runner.RunScenario(cmd.Context(), sc)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if len(summaries) > 0 {
		fmt.Fprintln(w, "RUN\tSEED\tSTEPS\tF0\tF\tLENGTH")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.6g\t%.6g\t%.4g\n",
				s.RunID, s.Seed, s.Steps, s.InitialEnergy, s.FinalEnergy, s.Length)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(sweep) > 0 {
		fmt.Printf("\nsweep over %s:\n", sc.Sweep.Param)
		fmt.Fprintln(w, "VALUE\tRUN\tF\tLENGTH")
		for _, r := range sweep {
			fmt.Fprintf(w, "%g\t%s\t%.6g\t%.4g\n", r.ParamValue, r.RunID, r.FinalEnergy, r.Length)
		}
		return w.Flush()
	}

	return nil
}
