// Package alerts delivers job outcome notifications. Sinks are pluggable;
// the executor only knows the Sink interface. Delivery failures are the
// caller's to log and never abort a job.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/slack-go/slack"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Alert is one structured notification about a job run.
type Alert struct {
	// Message is the short headline, e.g. "Job daily-report succeeded".
	Message string
	// Description carries the result preview or failure diagnostic.
	Description string
	Severity    Severity
}

// Sink accepts alerts for delivery.
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// ConsoleSink prints alerts to a writer with severity colouring.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink writes to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: os.Stdout}
}

// NewConsoleSinkTo writes to an explicit writer (tests).
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

func (s *ConsoleSink) Send(_ context.Context, a Alert) error {
	tag := color.GreenString("OK")
	if a.Severity == SeverityError {
		tag = color.RedString("ALERT")
	}
	if _, err := fmt.Fprintf(s.out, "[%s] %s %s\n", time.Now().Format(time.TimeOnly), tag, a.Message); err != nil {
		return err
	}
	if a.Description != "" {
		_, err := fmt.Fprintf(s.out, "        %s\n", a.Description)
		return err
	}
	return nil
}

// SlackSink posts alerts to an incoming-webhook URL.
type SlackSink struct {
	webhookURL string
}

func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{webhookURL: webhookURL}
}

func (s *SlackSink) Send(ctx context.Context, a Alert) error {
	colorHex := "#36a64f"
	if a.Severity == SeverityError {
		colorHex = "#cc0000"
	}
	msg := &slack.WebhookMessage{
		Text: a.Message,
		Attachments: []slack.Attachment{{
			Color: colorHex,
			Text:  a.Description,
		}},
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// MultiSink fans an alert out to every configured sink. All sinks are
// attempted; errors are joined.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, a Alert) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
