// Package cli implements the livefeed command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool

	// AWS
	Profile  string
	Region   string
	Endpoint string

	// Collection layout
	Collection string
	Table      string
	Index      string
	Shards     int

	// Change notifications
	RedisURL string
	Channel  string

	// Auth
	SigningKey string
	Issuer     string
	Token      string
}

// NewRootCommand creates the root command for the livefeed CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "livefeed",
		Short: "Live paginated message feed on DynamoDB",
		Long: `livefeed watches and posts to a live, newest-first message feed stored
in DynamoDB. Change notifications are fanned out over Redis pub/sub.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	f.StringVar(&opts.Profile, "profile", os.Getenv("AWS_PROFILE"), "AWS shared config profile")
	f.StringVar(&opts.Region, "region", "", "AWS region (defaults to the profile's region)")
	f.StringVar(&opts.Endpoint, "endpoint", "", "DynamoDB endpoint override, e.g. http://localhost:8000")
	f.StringVar(&opts.Collection, "collection", "messages", "collection name")
	f.StringVar(&opts.Table, "table", "livefeed_messages", "DynamoDB table backing the collection")
	f.StringVar(&opts.Index, "index", "feed_created_at", "feed index ordered by created_at")
	f.IntVar(&opts.Shards, "shards", 1, "number of feed partitions")
	f.StringVar(&opts.RedisURL, "redis", os.Getenv("LIVEFEED_REDIS_URL"), "Redis URL for change notifications")
	f.StringVar(&opts.Channel, "channel", "livefeed:changes", "Redis pub/sub channel")
	f.StringVar(&opts.SigningKey, "signing-key", os.Getenv("LIVEFEED_SIGNING_KEY"), "HS256 key used to verify tokens")
	f.StringVar(&opts.Issuer, "issuer", "livefeed", "expected token issuer")
	f.StringVar(&opts.Token, "token", os.Getenv("LIVEFEED_TOKEN"), "token presented at sign-in")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
