// Package escalation hands an enquiry to a human: it notifies an internal channel and,
// where the prospect's channel allows replies, acknowledges the handoff to the prospect.
package escalation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/pkg/utils"
)

// DefaultAckMessage is sent to the prospect when a human takes over.
const DefaultAckMessage = "A team member will be in touch shortly to help with your enquiry. They have full context of our conversation."

// Notifier delivers an escalation to the internal operations channel.
type Notifier interface {
	Notify(ctx context.Context, esc models.EscalationContext) error
}

// Replier sends a message back to the prospect on their originating channel.
type Replier interface {
	Reply(ctx context.Context, to, message string) error
}

// Result reports what each effect of an escalation did. Errors are informational only.
type Result struct {
	Notified     bool   `json:"notified"`
	NotifyError  string `json:"notify_error,omitempty"`
	AckAttempted bool   `json:"ack_attempted"`
	Acknowledged bool   `json:"acknowledged"`
	AckError     string `json:"ack_error,omitempty"`

	NotifyErr error `json:"-"`
	AckErr    error `json:"-"`
}

// Handoff runs the two escalation effects independently, each under its own timeout.
type Handoff struct {
	notifier      Notifier
	replier       Replier
	notifyTimeout time.Duration
	replyTimeout  time.Duration
	ack           string
	logger        *zap.Logger
}

// Option configures a Handoff.
type Option func(*Handoff)

// WithTimeouts sets the notification and reply timeouts.
func WithTimeouts(notify, reply time.Duration) Option {
	return func(h *Handoff) {
		if notify > 0 {
			h.notifyTimeout = notify
		}
		if reply > 0 {
			h.replyTimeout = reply
		}
	}
}

// WithAckMessage overrides the prospect acknowledgment text.
func WithAckMessage(msg string) Option {
	return func(h *Handoff) {
		if msg != "" {
			h.ack = msg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handoff) { h.logger = l }
}

// NewHandoff returns a Handoff. A nil notifier or replier skips that effect.
func NewHandoff(notifier Notifier, replier Replier, opts ...Option) *Handoff {
	h := &Handoff{
		notifier:      notifier,
		replier:       replier,
		notifyTimeout: 10 * time.Second,
		replyTimeout:  10 * time.Second,
		ack:           DefaultAckMessage,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = utils.OrNop(h.logger)
	return h
}

// Escalate notifies the internal channel and acknowledges the prospect concurrently.
// A failure or timeout in one effect never blocks or undoes the other, and neither is
// returned as an error: both are logged and reported in the Result.
func (h *Handoff) Escalate(ctx context.Context, esc models.EscalationContext) Result {
	snapshot := esc.Clone()
	var res Result
	var wg sync.WaitGroup

	if h.notifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nctx, cancel := context.WithTimeout(ctx, h.notifyTimeout)
			defer cancel()
			if err := h.notifier.Notify(nctx, snapshot); err != nil {
				h.logger.Warn("Escalation notification failed",
					zap.String("enquiry_id", snapshot.EnquiryID),
					zap.Error(err))
				res.NotifyErr = err
				res.NotifyError = err.Error()
				return
			}
			res.Notified = true
		}()
	} else {
		h.logger.Debug("No escalation notifier configured", zap.String("enquiry_id", snapshot.EnquiryID))
	}

	if snapshot.Channel.SupportsReply() && h.replier != nil && snapshot.Prospect.Contact != "" {
		res.AckAttempted = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			rctx, cancel := context.WithTimeout(ctx, h.replyTimeout)
			defer cancel()
			if err := h.replier.Reply(rctx, snapshot.Prospect.Contact, h.ack); err != nil {
				h.logger.Warn("Prospect acknowledgment failed",
					zap.String("enquiry_id", snapshot.EnquiryID),
					zap.String("channel", string(snapshot.Channel)),
					zap.Error(err))
				res.AckErr = err
				res.AckError = err.Error()
				return
			}
			res.Acknowledged = true
		}()
	}

	wg.Wait()
	h.logger.Info("Enquiry escalated",
		zap.String("enquiry_id", snapshot.EnquiryID),
		zap.String("reason", snapshot.Reason),
		zap.Bool("notified", res.Notified),
		zap.Bool("acknowledged", res.Acknowledged))
	return res
}
