package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/admission"
	"github.com/evalgrid/evalgrid/budget"
	"github.com/evalgrid/evalgrid/config"
	"github.com/evalgrid/evalgrid/datasource"
	engineopenai "github.com/evalgrid/evalgrid/engine/openai"
	"github.com/evalgrid/evalgrid/executor"
	"github.com/evalgrid/evalgrid/metrics"
	"github.com/evalgrid/evalgrid/result"
	"github.com/evalgrid/evalgrid/retry"
	"github.com/evalgrid/evalgrid/scheduler"
	"github.com/evalgrid/evalgrid/timeout"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "evalgrid",
		Short:         "Run evaluation grids: every datum against every variation, under budget.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newRunCommand())

	return root
}

type runFlags struct {
	configPath  string
	metricsAddr string
	verbose     bool
}

func newRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the grid described by the configuration file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrid(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "evalgrid.yaml", "path to the run configuration")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (disabled when empty)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func runGrid(cmd *cobra.Command, flags *runFlags) error {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if flags.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logger.WithField("run", runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics are a dummy unless an address to expose them on is given.
	recorder := metrics.Dummy
	if flags.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go serveMetrics(log, flags.metricsAddr, reg)
	}

	engine, err := engineopenai.New(engineopenai.Config{
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		Model:          cfg.Engine.Model,
		PromptTemplate: cfg.Engine.PromptTemplate,
	})
	if err != nil {
		return err
	}

	// The rate budget is created per run, it never leaks across runs.
	runBudget := newBudget(cfg.Budget)

	runner := evalgrid.RunnerChain(
		executor.New(executor.Config{Engine: engine}),
		metrics.NewMeasuredMiddleware(runID, recorder),
		admission.NewMiddleware(admission.Config{Ceiling: cfg.AdmissionCeiling}),
		retry.NewMiddleware(retry.Config{
			WaitBase:       cfg.Retry.WaitBase.Std(),
			Times:          cfg.Retry.Times,
			DisableBackoff: cfg.Retry.DisableBackoff,
		}),
		budget.NewMiddleware(budget.MiddlewareConfig{
			Budget:   runBudget,
			Feedback: cfg.Budget.Feedback,
		}),
		timeout.NewMiddleware(timeout.Config{Timeout: cfg.TaskTimeout.Std()}),
	)

	source := datasource.NewJSONL(cfg.Dataset.Path, cfg.Dataset.BatchSize)
	tasks, err := datasource.BuildTasks(ctx, source, cfg.Variations())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("dataset %q produced no data", cfg.Dataset.Path)
	}

	sched := scheduler.New(scheduler.Config{
		Runner:   runner,
		Strategy: scheduler.Strategy(cfg.Strategy),
		Workers:  cfg.Workers,
		Metrics:  recorder.WithID(runID),
		Logger:   log,
		Progress: func(completed, total int) {
			log.WithFields(logrus.Fields{"completed": completed, "total": total}).Debug("task finished")
		},
	})

	for _, t := range tasks {
		if err := sched.Submit(t); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"tasks":      len(tasks),
		"variations": len(cfg.VariationSet),
		"strategy":   cfg.Strategy,
	}).Info("grid run starting")

	set, err := sched.Drain(ctx)
	if err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}

	return report(log, set)
}

func newBudget(cfg config.Budget) budget.Budget {
	if cfg.Kind == "paced" {
		return budget.NewPaced(cfg.RefillPerSecond, int(cfg.Capacity))
	}

	return budget.NewAdaptive(budget.Config{
		Capacity:        cfg.Capacity,
		RefillPerSecond: cfg.RefillPerSecond,
	})
}

func serveMetrics(log logrus.FieldLogger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Warn("metrics listener stopped")
	}
}

func report(log logrus.FieldLogger, set *result.Set) error {
	for _, f := range set.Failures() {
		log.WithField("datum", f.DatumID).WithError(f.Err).Warn("datum failed")
	}

	log.WithFields(logrus.Fields{
		"results":  set.Len(),
		"failures": len(set.Failures()),
	}).Info("grid run finished")

	if set.Len() == 0 {
		return fmt.Errorf("no task completed")
	}

	return nil
}
