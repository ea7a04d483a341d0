package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/seantiz/brickrun/internal/config"
	"github.com/seantiz/brickrun/internal/databricks"
	"github.com/seantiz/brickrun/internal/operator"
	"github.com/seantiz/brickrun/internal/payload"
)

// brickrun submits one run described by a spec file, waits for it to reach a
// terminal state, and exits 0 on success. SIGINT/SIGTERM cancel the remote
// run before exiting.
func main() {
	var (
		specFile      = pflag.String("spec", "", "path to the run spec file (JSON or YAML)")
		taskID        = pflag.String("task-id", "", "task id; also the default run_name")
		connectionID  = pflag.String("connection-id", databricks.DefaultConnectionID, "registered connection to submit through")
		pollingPeriod = pflag.Duration("polling-period", 0, "interval between run state polls (default from BRICKRUN_POLLING_PERIOD_S)")
		retryLimit    = pflag.Int("retry-limit", 0, "transient retry limit per API call (default from BRICKRUN_RETRY_LIMIT)")
		idempotent    = pflag.Bool("idempotent", false, "attach a generated idempotency token to the submission")
		vars          = pflag.StringArray("var", nil, "template variable as key=value; repeatable")
	)
	pflag.Parse()

	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	if *specFile == "" || *taskID == "" {
		fmt.Fprintln(os.Stderr, "brickrun: --spec and --task-id are required")
		pflag.Usage()
		os.Exit(2)
	}
	if cfg.DatabricksHost == "" {
		fmt.Fprintln(os.Stderr, "brickrun: BRICKRUN_DATABRICKS_HOST is not set")
		os.Exit(2)
	}

	raw, err := loadSpecFile(*specFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brickrun: %v\n", err)
		os.Exit(2)
	}
	renderContext, err := parseVars(*vars)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brickrun: %v\n", err)
		os.Exit(2)
	}

	spec := payload.Spec{Raw: raw}
	if *idempotent {
		spec.IdempotencyToken = payload.NewIdempotencyToken()
	}

	registry := databricks.NewRegistry()
	registry.Register(databricks.DefaultConnectionID, databricks.Connection{
		Host:  cfg.DatabricksHost,
		Token: cfg.DatabricksTok,
	})

	period := *pollingPeriod
	if period <= 0 {
		period = cfg.PollingPeriod
	}
	retries := *retryLimit
	if retries <= 0 {
		retries = cfg.RetryLimit
	}

	op, err := operator.New(operator.Config{
		TaskID:        *taskID,
		ConnectionID:  *connectionID,
		PollingPeriod: period,
		RetryLimit:    retries,
		Spec:          spec,
		Renderer:      payload.DefaultRenderer,
		RenderContext: renderContext,
		Factory:       registry,
		Logger:        logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "brickrun: invalid run configuration: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = op.Execute(ctx)
	switch {
	case err == nil:
		logger.Info("run succeeded", "run_id", op.RunID())
	case errors.Is(err, context.Canceled):
		stop()
		killCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if kerr := op.OnKill(killCtx); kerr != nil {
			logger.Error("failed to cancel remote run", "run_id", op.RunID(), "error", kerr)
		}
		logger.Info("run canceled", "run_id", op.RunID())
		os.Exit(130)
	default:
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// loadSpecFile reads a JSON or YAML document into a generic mapping. YAML is
// the default; a .json extension switches to the JSON decoder so numeric
// fidelity follows encoding/json semantics for JSON inputs.
func loadSpecFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	doc := map[string]any{}
	if filepath.Ext(path) == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		// Keep integers as json.Number; a float64 round-trip would coerce
		// 1 to "1.0" on the wire.
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse spec file %s: %w", path, err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse spec file %s: %w", path, err)
	}
	return doc, nil
}

func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}
