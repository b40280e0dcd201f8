// Command collinearity generates a synthetic marketing dataset (or loads one
// from CSV), runs the collinearity analyses and prints a report.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/mmm-collinearity/internal/config"
	"github.com/irfndi/mmm-collinearity/internal/export"
	"github.com/irfndi/mmm-collinearity/internal/logging"
	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
)

type cliOptions struct {
	scenario    string
	periods     int
	seed        int64
	baseSales   float64
	noisePct    float64
	noSeasonal  bool
	noTrend     bool
	noOutliers  bool
	input       string
	exportPath  string
	threshold   float64
	iterations  int
	bootMethod  string
	trainFrac   float64
	methods     models.MethodParams
	window      int
	simulate    bool
	rho         float64
	sampleSize  int
	quiet       bool
	logLevel    string
	skipCompare bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "collinearity: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{methods: cfg.Analysis.Methods}
	sim := models.DefaultSimulationParams()

	fs := flag.NewFlagSet("collinearity", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.scenario, "scenario", cfg.Generation.Scenario, "correlation scenario: low, medium, high or extreme")
	fs.IntVar(&opts.periods, "periods", cfg.Generation.Periods, "number of weekly periods to generate")
	fs.Int64Var(&opts.seed, "seed", cfg.Generation.Seed, "random seed for generation and bootstrap")
	fs.Float64Var(&opts.baseSales, "base-sales", cfg.Generation.BaseSales, "baseline weekly sales")
	fs.Float64Var(&opts.noisePct, "noise", cfg.Generation.NoisePct, "outcome noise as a percentage of base sales")
	fs.BoolVar(&opts.noSeasonal, "no-seasonality", !cfg.Generation.Seasonality, "disable the yearly seasonal cycle")
	fs.BoolVar(&opts.noTrend, "no-trend", !cfg.Generation.Trend, "disable the growth trend")
	fs.BoolVar(&opts.noOutliers, "no-outliers", !cfg.Generation.Outliers, "disable the periodic outlier weeks")
	fs.StringVar(&opts.input, "input", "", "analyse this CSV (or .csv.zst) instead of generating data")
	fs.StringVar(&opts.exportPath, "export", "", "write the dataset to this CSV path (.zst suffix compresses)")

	fs.Float64Var(&opts.threshold, "threshold", cfg.Analysis.CorrelationThreshold, "absolute correlation above which a pair is flagged")
	fs.IntVar(&opts.iterations, "iterations", cfg.Analysis.BootstrapIterations, "bootstrap samples")
	fs.StringVar(&opts.bootMethod, "bootstrap-method", "ols", "model refitted in each bootstrap sample: ols or ridge")
	fs.Float64Var(&opts.trainFrac, "train", cfg.Analysis.TrainFraction, "fraction of periods used for training")
	fs.Float64Var(&opts.methods.RidgeAlpha, "ridge-alpha", cfg.Analysis.Methods.RidgeAlpha, "ridge penalty")
	fs.Float64Var(&opts.methods.LassoAlpha, "lasso-alpha", cfg.Analysis.Methods.LassoAlpha, "lasso and elastic net penalty")
	fs.Float64Var(&opts.methods.ElasticNetRatio, "en-ratio", cfg.Analysis.Methods.ElasticNetRatio, "elastic net L1 ratio")
	fs.IntVar(&opts.methods.PCAComponents, "pca", cfg.Analysis.Methods.PCAComponents, "principal components kept")
	fs.StringVar(&opts.methods.ResidualizationBaseChannel, "base-channel", cfg.Analysis.Methods.ResidualizationBaseChannel, "base channel for residualization (default first channel)")
	fs.BoolVar(&opts.skipCompare, "no-compare", false, "skip the method comparison")
	fs.IntVar(&opts.window, "window", cfg.Analysis.MovingAverageWindow, "moving average window for the outcome summary")

	fs.BoolVar(&opts.simulate, "simulate", false, "also run the two-channel simulation")
	fs.Float64Var(&opts.rho, "rho", sim.Correlation, "correlation for -simulate")
	fs.IntVar(&opts.sampleSize, "sample-size", sim.SampleSize, "sample size for -simulate")

	fs.BoolVar(&opts.quiet, "quiet", false, "hide the bootstrap progress bar")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func (o *cliOptions) generateParams() (services.GenerateParams, error) {
	scenario, err := models.ParseScenario(o.scenario)
	if err != nil {
		return services.GenerateParams{}, err
	}
	params := services.DefaultGenerateParams()
	params.Scenario = scenario
	params.Periods = o.periods
	params.Seed = o.seed
	params.BaseSales = o.baseSales
	params.NoisePct = o.noisePct
	params.Options = services.GenerateOptions{
		Seasonality: !o.noSeasonal,
		Trend:       !o.noTrend,
		Outliers:    !o.noOutliers,
	}
	return params, nil
}

func (o *cliOptions) bootstrapSpec() (models.FitSpec, error) {
	kind, err := models.ParseMethodKind(o.bootMethod)
	if err != nil {
		return models.FitSpec{}, err
	}
	switch kind {
	case models.MethodOLS:
		return models.FitSpec{Kind: kind}, nil
	case models.MethodRidge:
		return models.FitSpec{Kind: kind, Alpha: o.methods.RidgeAlpha}, nil
	default:
		return models.FitSpec{}, fmt.Errorf("bootstrap method must be ols or ridge, got %s", kind)
	}
}

func loadDataset(o *cliOptions, logger *logrus.Logger) (*models.MarketingDataset, error) {
	if o.input != "" {
		return export.ReadFile(o.input)
	}
	params, err := o.generateParams()
	if err != nil {
		return nil, err
	}
	return services.NewDataGenerator(logger).Generate(params)
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	opts, err := parseFlags(args, cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger := logging.NewLogrusLogger(opts.logLevel, "text", stderr)

	ds, err := loadDataset(opts, logger)
	if err != nil {
		return fmt.Errorf("dataset: %w", err)
	}

	summary, err := services.NewSummaryService(logger).Summarize(ds, min(opts.window, ds.NumRows()))
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	printSummary(stdout, ds, summary)

	diagnostics, err := services.NewDiagnosticsService(logger, opts.threshold).Compute(ds)
	if err != nil {
		return fmt.Errorf("diagnostics: %w", err)
	}
	printDiagnostics(stdout, diagnostics)

	spec, err := opts.bootstrapSpec()
	if err != nil {
		return err
	}
	var bootOpts []services.BootstrapOption
	if !opts.quiet && opts.iterations > 0 {
		bar := progressbar.NewOptions(opts.iterations,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("bootstrap"),
			progressbar.OptionClearOnFinish(),
		)
		bootOpts = append(bootOpts, services.WithProgress(func(done, total int) {
			_ = bar.Add(1)
		}))
	}
	boot, err := services.NewBootstrapAnalyzer(logger).RunWithModel(ds, opts.iterations, opts.seed, spec, bootOpts...)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	printBootstrap(stdout, boot)

	if !opts.skipCompare {
		comparison, err := services.NewFitComparator(logger).Compare(ds, opts.trainFrac, opts.methods)
		if err != nil {
			return fmt.Errorf("compare: %w", err)
		}
		printComparison(stdout, comparison)
	}

	if opts.simulate {
		params := models.DefaultSimulationParams()
		params.Correlation = opts.rho
		params.SampleSize = opts.sampleSize
		params.Seed = opts.seed
		sim, err := services.NewPairSimulator(logger).Simulate(params)
		if err != nil {
			return fmt.Errorf("simulate: %w", err)
		}
		printSimulation(stdout, sim)
	}

	if opts.exportPath != "" {
		if err := export.WriteFile(opts.exportPath, ds); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(stdout, "\nDataset written to %s\n", opts.exportPath)
	}
	return nil
}
