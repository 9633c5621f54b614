package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/orchestra"
	"github.com/hupe1980/orchestra/config"
	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/evaluation"
	"github.com/hupe1980/orchestra/history"
	"github.com/hupe1980/orchestra/logging"
	"github.com/hupe1980/orchestra/observability"
	"github.com/hupe1980/orchestra/orchestrator"
	"github.com/hupe1980/orchestra/synth"
)

type runFlags struct {
	planPath    string
	inputs      []string
	metricsAddr string
	trace       bool
	noHistory   bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a plan",
		Long: `Execute the plan file against the agents declared in the config file.

String inputs of the plan are templates; --input key=value pairs are
available as {{.key}}. The command prints the status of every invocation and
the synthesized result as JSON, and exits non-zero when the run aborts.`,
		Example: `  orchestra run -c orchestra.yaml --plan plan.yaml --input topic="solid-state batteries"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			return runPlan(cmd.Context(), cmd.OutOrStdout(), cfg, f)
		},
	}

	cmd.Flags().StringVarP(&f.planPath, "plan", "p", "", "plan file (YAML)")
	cmd.Flags().StringArrayVarP(&f.inputs, "input", "i", nil, "template variable key=value (repeatable)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "export OpenTelemetry spans to stderr")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the run in the history database")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runPlan(ctx context.Context, out io.Writer, cfg *config.Config, f *runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger := newLogger(cfg)

	vars, err := parseInputs(f.inputs)
	if err != nil {
		return err
	}

	pf, err := config.LoadPlan(f.planPath)
	if err != nil {
		return err
	}

	plan, err := pf.Plan(vars, cfg.RetryOptions())
	if err != nil {
		return err
	}

	for _, role := range pf.Roles() {
		if _, ok := cfg.Agents[string(role)]; !ok {
			logger.Warn("Plan references a role without configured agent", "role", role)
		}
	}

	agents, err := cfg.BuildAgents(logger.WithComponent("agent"))
	if err != nil {
		return err
	}

	synthesizer, err := buildSynthesizer(cfg)
	if err != nil {
		return err
	}

	hooks := []core.Hook{observability.NewLogHook(logger)}

	if f.metricsAddr != "" {
		metrics := observability.NewMetrics()
		hooks = append(hooks, metrics)

		shutdown := serveMetrics(f.metricsAddr, metrics, logger)
		defer shutdown()
	}

	if f.trace {
		tp, err := observability.NewStdoutTracerProvider(os.Stderr, version)
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
		hooks = append(hooks, observability.NewTracer(tp))
	}

	var store *history.SQLiteStore
	if cfg.History.Enabled && !f.noHistory {
		store, err = openHistory(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	o := orchestra.New(func(o *orchestra.Options) {
		o.Config = cfg.Orchestrator
		o.Synthesizer = synthesizer
		o.Hooks = hooks
		o.Logger = logger.WithComponent("orchestrator")
		if store != nil {
			o.History = store
		} else {
			o.DisableHistory = true
		}
	})

	for role, a := range agents {
		if err := o.Register(role, a); err != nil {
			return err
		}
	}

	res, err := o.Submit(ctx, plan)
	if err != nil {
		var rf *orchestrator.RunFailure
		if errors.As(err, &rf) {
			printResults(out, plan, rf.Results)
			printFailure(out, rf)
		}
		return err
	}

	printResults(out, plan, res.Results)

	data, err := json.MarshalIndent(res.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintf(out, "\n%s\n", data)

	return nil
}

func buildSynthesizer(cfg *config.Config) (*synth.Synthesizer, error) {
	var evaluators []evaluation.Evaluator
	if cfg.Synthesis.MinLength > 0 {
		evaluators = append(evaluators, evaluation.MinLength(cfg.Synthesis.MinLength))
	}
	if cfg.Synthesis.Judge != "" {
		llm, err := cfg.Agents[cfg.Synthesis.Judge].BuildModel(cfg.Synthesis.Judge)
		if err != nil {
			return nil, err
		}
		evaluators = append(evaluators, evaluation.ModelJudge(llm, cfg.Synthesis.JudgeThreshold))
	}

	return synth.New(func(o *synth.Options) {
		o.Required = cfg.Synthesis.Required
		o.Optional = cfg.Synthesis.Optional
		if len(evaluators) > 0 {
			o.Quality = evaluation.Check(evaluators...)
		}
	}), nil
}

func serveMetrics(addr string, metrics *observability.Metrics, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func openHistory(cfg *config.Config) (*history.SQLiteStore, error) {
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	return history.OpenSQLite(path)
}

// parseInputs turns key=value pairs into template variables.
func parseInputs(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --input %q: want key=value", p)
		}
		vars[k] = v
	}
	return vars, nil
}
