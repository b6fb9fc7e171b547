package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/acksell/pairent/config"
	"github.com/acksell/pairent/dynamodb/ddbmetrics"
	"github.com/acksell/pairent/dynamodb/ddbsdk"
	"github.com/acksell/pairent/dynamodb/ddbstore"
	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/acksell/pairent/forum/repo"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
)

// app carries what the commands share. It is populated by the root
// command's pre-run hook.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg      config.Config
	log      *zap.Logger
	client   store.Client
	registry *prometheus.Registry
	closers  []func() error

	// open builds the store client; tests replace it.
	open func(ctx context.Context, a *app) (store.Client, error)
	// aws loads the SDK configuration for commands that talk to AWS
	// directly.
	aws func(ctx context.Context, cfg config.Config) (aws.Config, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, open: openStore, aws: loadAWSConfig}
}

func (a *app) setup(ctx context.Context) error {
	log, err := newLogger(a.cfg.Log)
	if err != nil {
		return err
	}
	a.log = log
	client, err := a.open(ctx, a)
	if err != nil {
		return err
	}
	if a.cfg.Metrics.Enabled {
		m := ddbmetrics.NewCollector(a.cfg.Metrics.Namespace)
		a.registry = prometheus.NewRegistry()
		if err := a.registry.Register(m); err != nil {
			return err
		}
		client = m.Instrument(client)
	}
	a.client = client
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) repoOptions() []repo.Option {
	return []repo.Option{
		repo.WithLogger(a.log),
		repo.WithLimits(a.cfg.QueryLimits()),
		repo.WithSearchOptions(a.cfg.SearchOptions()),
		repo.WithCascadeOptions(a.cfg.CascadeOptions()),
	}
}

func (a *app) forum() *repo.Forum {
	return repo.NewForum(a.client, a.repoOptions()...)
}

// emit writes one JSON document per line.
func (a *app) emit(vs ...any) error {
	enc := json.NewEncoder(a.stdout)
	for _, v := range vs {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// dumpMetrics writes the registry in the text exposition format.
func (a *app) dumpMetrics() error {
	if a.registry == nil {
		return nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.stderr, mf); err != nil {
			return err
		}
	}
	return nil
}

func openStore(ctx context.Context, a *app) (store.Client, error) {
	def := table.Forum(a.cfg.Table)
	if a.cfg.Local.Enabled {
		s, err := ddbstore.New(ddbstore.StoreOptions{
			Path:     a.cfg.Local.Path,
			InMemory: a.cfg.Local.InMemory,
			Logger:   a.log,
		}, def)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}

	awsCfg, err := a.aws(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	ddb := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if a.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.cfg.Endpoint)
		}
	})
	return ddbsdk.New(ddb, def,
		ddbsdk.WithRetries(a.cfg.Retry.MaxAttempts, a.cfg.Backoff()),
		ddbsdk.WithCircuitBreaker(ddbsdk.DefaultBreakerSettings(def.Name)),
		ddbsdk.WithLogger(a.log),
	), nil
}

// loadAWSConfig disables SDK retries; the store client retries itself.
// A custom endpoint means DynamoDB Local, which accepts any credentials.
func loadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
