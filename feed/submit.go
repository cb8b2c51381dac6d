package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/livefeed/auth"
	"github.com/jacentio/livefeed/sanitize"
	"github.com/jacentio/livefeed/store"
)

var (
	// ErrValidation is returned when the input is blank after sanitizing.
	ErrValidation = errors.New("livefeed: message is empty")

	// ErrAuth is returned when no identity could be obtained.
	ErrAuth = errors.New("livefeed: not signed in")
)

// SetInput replaces the pending message text and clears the input error.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.inputError = false
	state := c.stateLocked()
	c.mu.Unlock()

	c.emit(state)
}

// Submit posts the pending input as a new message.
//
// Without a signed-in identity it runs the sign-in flow first and aborts with
// ErrAuth, after alerting the user, unless it succeeds. Blank input sets
// State.InputError and returns ErrValidation without writing. On success the
// input is cleared. Submit does not wait for the message to appear in the
// feed.
//
// Concurrent calls share one attempt and its result.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	_, err, shared := c.submits.Do("submit", func() (interface{}, error) {
		return nil, c.submit(ctx)
	})
	if shared {
		c.logger.Debug("submit joined in-flight attempt", "collection", c.config.Collection)
	}
	return err
}

func (c *Controller) submit(ctx context.Context) error {
	identity, err := c.identity(ctx)
	if err != nil {
		c.metrics.Submissions.WithLabelValues("auth_error").Inc()
		return err
	}

	c.mu.Lock()
	raw := c.input
	text := sanitize.String(raw)
	if sanitize.IsBlank(text) {
		c.inputError = true
		state := c.stateLocked()
		c.mu.Unlock()
		c.metrics.Submissions.WithLabelValues("invalid").Inc()
		c.emit(state)
		return ErrValidation
	}
	c.mu.Unlock()

	id := c.writer.NewIdentity(c.config.Collection)
	data := map[string]any{
		"author_id":         identity.UID,
		"message":           text,
		c.config.OrderField: store.ServerTimestamp,
	}
	if identity.DisplayName != "" {
		data["author_name"] = identity.DisplayName
	}
	if err := c.writer.CreateDocument(ctx, c.config.Collection, id, data); err != nil {
		c.metrics.Submissions.WithLabelValues("error").Inc()
		c.logger.Error("create message failed",
			"collection", c.config.Collection,
			"id", id,
			"error", err,
		)
		return fmt.Errorf("create message: %w", err)
	}

	c.mu.Lock()
	if c.input == raw {
		c.input = ""
	}
	c.inputError = false
	state := c.stateLocked()
	c.mu.Unlock()

	c.metrics.Submissions.WithLabelValues("ok").Inc()
	c.logger.Info("message submitted",
		"collection", c.config.Collection,
		"id", id,
		"author", identity.UID,
	)
	c.emit(state)
	return nil
}

// identity returns the current identity, signing in if there is none.
func (c *Controller) identity(ctx context.Context) (*auth.Identity, error) {
	if id := c.auth.Current(); id != nil {
		return id, nil
	}

	res, err := c.auth.SignIn(ctx)
	if err != nil {
		c.notifyUser(err.Error())
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if !res.OK() {
		c.notifyUser(res.Message)
		return nil, fmt.Errorf("%w: status %d: %s", ErrAuth, res.Status, res.Message)
	}

	id := c.auth.Current()
	if id == nil {
		c.notifyUser("sign-in returned no identity")
		return nil, ErrAuth
	}
	return id, nil
}

func (c *Controller) notifyUser(message string) {
	c.logger.Warn("sign-in failed", "message", message)
	if c.alert != nil {
		c.alert(message)
	}
}

func (c *Controller) submitFromKey() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.Submit(ctx); err != nil && !errors.Is(err, ErrValidation) {
		c.logger.Warn("submit failed", "error", err)
	}
}
