// Command changefeed is a Lambda handler for DynamoDB Streams that publishes
// collection change notifications to Redis.
//
// Environment:
//
//	LIVEFEED_REDIS_URL   Redis URL (required)
//	LIVEFEED_CHANNEL     pub/sub channel (default "livefeed:changes")
//	LIVEFEED_COLLECTIONS comma-separated collection=table pairs
//	                     (default "messages=livefeed_messages")
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/redis/go-redis/v9"

	"github.com/jacentio/livefeed/notify"
	"github.com/jacentio/livefeed/store"
	"github.com/jacentio/livefeed/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	handler, err := newHandler(logger)
	if err != nil {
		logger.Error("init failed", "error", err)
		os.Exit(1)
	}
	lambda.Start(handler.HandleChanges)
}

func newHandler(logger *slog.Logger) (*stream.Handler, error) {
	url := os.Getenv("LIVEFEED_REDIS_URL")
	if url == "" {
		return nil, fmt.Errorf("LIVEFEED_REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	registry, err := parseCollections(envOr("LIVEFEED_COLLECTIONS", "messages=livefeed_messages"))
	if err != nil {
		return nil, err
	}

	publisher := notify.NewRedis(client, envOr("LIVEFEED_CHANNEL", notify.DefaultChannel), logger)
	return stream.NewHandler(publisher, registry, logger), nil
}

func parseCollections(mapping string) (*store.Registry, error) {
	r := store.NewRegistry()
	for _, pair := range strings.Split(mapping, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, table, ok := strings.Cut(pair, "=")
		if !ok || name == "" || table == "" {
			return nil, fmt.Errorf("invalid collection mapping %q", pair)
		}
		r.Register(store.Collection{Name: name, TableName: table})
	}
	return r, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
