package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/livefeed/auth"
	"github.com/jacentio/livefeed/feed"
)

// NewPostCommand creates the post command.
func NewPostCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <message>...",
		Short: "Post one message",
		Long: `Post one message to the feed. Arguments are joined with spaces.

Example:
  livefeed post --signing-key dev --token "$TOKEN" hello there`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd.Context(), opts, strings.Join(args, " "), cmd.ErrOrStderr())
		},
	}
	return cmd
}

func runPost(ctx context.Context, opts *RootOptions, message string, errOut io.Writer) error {
	provider, err := authProvider(opts)
	if err != nil {
		return err
	}

	e, err := newEnv(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	// Posting never subscribes, so the controller needs no live source.
	ctrl := feed.New(nil, e.store, provider, feedConfig(opts),
		feed.WithMetrics(e.metrics),
		feed.WithAlert(func(m string) { fmt.Fprintf(errOut, "sign-in failed: %s\n", m) }),
	)
	defer ctrl.Close()

	ctrl.SetInput(message)
	return ctrl.Submit(ctx)
}

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UID  string
	Name string
	TTL  time.Duration
}

// NewTokenCommand creates the token command, which issues development tokens.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "token",
		Short:         "Issue a signed token for development",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.UID, "uid", "", "user id (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}

func runToken(opts *TokenOptions, out io.Writer) error {
	if opts.SigningKey == "" {
		return fmt.Errorf("no signing key: set --signing-key or LIVEFEED_SIGNING_KEY")
	}
	p := auth.NewJWTProvider(opts.SigningKey, opts.Issuer, nil)
	token, err := p.Issue(opts.UID, opts.Name, opts.TTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
