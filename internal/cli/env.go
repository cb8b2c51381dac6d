package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jacentio/livefeed/auth"
	"github.com/jacentio/livefeed/feed"
	"github.com/jacentio/livefeed/internal/metrics"
	"github.com/jacentio/livefeed/notify"
	"github.com/jacentio/livefeed/store"
)

// env holds the collaborators shared by commands.
type env struct {
	store   *store.Store
	redis   *redis.Client
	changes *notify.Redis
	bus     *notify.Bus
	metrics *metrics.Metrics
}

func newEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	storeCfg := store.DefaultConfig()
	storeCfg.NumShards = opts.Shards
	e := &env{
		store:   store.New(client, storeCfg, registry(opts)),
		metrics: metrics.New(prometheus.DefaultRegisterer),
	}

	if opts.RedisURL == "" {
		slog.Warn("no Redis URL configured, only local changes are observed")
		e.bus = notify.NewBus()
		e.store.SetPublisher(e.bus, slog.Default())
		return e, nil
	}

	redisOpts, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	e.redis = redis.NewClient(redisOpts)
	if err := e.redis.Ping(ctx).Err(); err != nil {
		e.redis.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	e.changes = notify.NewRedis(e.redis, opts.Channel, slog.Default())
	e.store.SetPublisher(e.changes, slog.Default())
	return e, nil
}

// source returns where change notifications arrive from.
func (e *env) source() notify.Source {
	if e.changes != nil {
		return e.changes
	}
	return e.bus
}

func (e *env) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}

func registry(opts *RootOptions) *store.Registry {
	r := store.NewRegistry()
	r.Register(store.Collection{
		Name:      opts.Collection,
		TableName: opts.Table,
		Indexes:   map[string]string{"created_at": opts.Index},
	})
	return r
}

func feedConfig(opts *RootOptions) feed.Config {
	cfg := feed.DefaultConfig()
	cfg.Collection = opts.Collection
	return cfg
}

func authProvider(opts *RootOptions) (*auth.JWTProvider, error) {
	if opts.SigningKey == "" {
		return nil, errors.New("no signing key: set --signing-key or LIVEFEED_SIGNING_KEY")
	}
	return auth.NewJWTProvider(opts.SigningKey, opts.Issuer, auth.TokenFunc(func(context.Context) (string, error) {
		if opts.Token == "" {
			return "", errors.New("no token: set --token or LIVEFEED_TOKEN")
		}
		return opts.Token, nil
	})), nil
}
