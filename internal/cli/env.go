package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nainya/entitystore/internal/backend"
	"github.com/nainya/entitystore/internal/config"
	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/internal/metrics"
	"github.com/nainya/entitystore/pkg/attrindex"
)

// env is everything a command needs: config, logger, metrics, the opened
// backend and an index bound to it
type env struct {
	cfg     config.Config
	log     *logger.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	backend *backend.Backend
	index   *attrindex.Index
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func openEnv(ctx context.Context, opts *RootOptions, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := newCommandLogger(cfg, logOut)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	b, err := backend.Open(ctx, cfg.Storage, log, m)
	if err != nil {
		return nil, err
	}

	ix := attrindex.New(b, attrindex.WithLogger(log), attrindex.WithMetrics(m))
	return &env{cfg: cfg, log: log, reg: reg, metrics: m, backend: b, index: ix}, nil
}

func (e *env) load(ctx context.Context) error {
	if err := e.index.Load(ctx, e.cfg.Index.Key); err != nil {
		return fmt.Errorf("load index %q: %w", e.cfg.Index.Key, err)
	}
	return nil
}

func (e *env) save(ctx context.Context) error {
	if err := e.index.Save(ctx, e.cfg.Index.Key); err != nil {
		return fmt.Errorf("save index %q: %w", e.cfg.Index.Key, err)
	}
	return nil
}

func (e *env) Close() error {
	return e.backend.Close()
}
