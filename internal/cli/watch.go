package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jacentio/livefeed/feed"
	"github.com/jacentio/livefeed/keys"
	"github.com/jacentio/livefeed/live"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	MetricsAddr string
	LoadDelay   time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the feed and post from stdin",
		Long: `Follow the feed, newest first, printing messages as they arrive.

Each line read from stdin is posted as a message. The line ":more" loads the
next older page and ":quit" exits.

Example:
  livefeed watch --redis redis://localhost:6379/0 --signing-key dev`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.LoadDelay, "load-delay", time.Second, "delay before loading an older page")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, in io.Reader, out, errOut io.Writer) error {
	provider, err := authProvider(opts.RootOptions)
	if err != nil {
		return err
	}

	e, err := newEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	hub := live.NewHub(e.store, live.WithMetrics(e.metrics))
	defer hub.Close()
	go func() {
		if err := hub.Run(ctx, e.source()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("change listener stopped", "error", err)
		}
	}()

	cfg := feedConfig(opts.RootOptions)
	cfg.LoadDelay = opts.LoadDelay

	var listener keys.Listener
	listener.SetFocused(true)

	r := newRenderer(out)
	ctrl := feed.New(hub, e.store, provider, cfg,
		feed.WithMetrics(e.metrics),
		feed.WithKeys(&listener),
		feed.WithAlert(func(m string) { fmt.Fprintf(errOut, "sign-in failed: %s\n", m) }),
		feed.OnState(r.render),
	)
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start feed: %w", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case ":quit":
				return nil
			case ":more":
				if !ctrl.Scroll(0) {
					st := ctrl.State()
					if !st.HasMore {
						fmt.Fprintln(errOut, "no older messages")
					}
				}
			default:
				ctrl.SetInput(line)
				listener.Dispatch(keys.Event{Key: cfg.ActivationKey, Type: keys.KeyDown})
				if ctrl.State().InputError {
					fmt.Fprintln(errOut, "message is empty")
				}
			}
		}
	}
}
