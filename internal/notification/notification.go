package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event names emitted by the orchestrator.
const (
	EventWalletCreated     = "wallet.created"
	EventDepositCompleted  = "deposit.completed"
	EventWithdrawCompleted = "withdrawal.completed"
	EventTransferSent      = "transfer.sent"
	EventTransferReceived  = "transfer.received"
)

// Message describes a notification payload.
type Message struct {
	Event   string         `json:"event"`
	OwnerID string         `json:"owner_id"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notifier delivers notifications to downstream systems. Delivery is
// best-effort: callers ignore the returned error beyond logging.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "event", message.Event, "owner_id", message.OwnerID)
	return nil
}

// HTTPNotifier posts events to the notification service. No response contract
// is enforced beyond a 2xx status.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

// NewHTTPNotifier constructs a notifier posting to the given sink URL.
func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

// Send posts the message as JSON.
func (n *HTTPNotifier) Send(ctx context.Context, message Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification sink returned %d", resp.StatusCode)
	}
	return nil
}

// Async wraps a notifier so Send returns immediately and delivery happens on
// a detached context. Failures are logged and never reach the caller; a
// failed notification must not change the outcome of a money movement.
type Async struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration
}

// NewAsync builds the fire-and-forget wrapper.
func NewAsync(next Notifier, logger *slog.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, logger: logger, timeout: timeout}
}

// Send dispatches in the background, detached from the request context so
// caller cancellation cannot abort delivery already in flight.
func (a *Async) Send(_ context.Context, message Message) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Send(ctx, message); err != nil && a.logger != nil {
			a.logger.Warn("notification dispatch failed",
				slog.String("event", message.Event),
				slog.String("owner_id", message.OwnerID),
				slog.Any("error", err),
			)
		}
	}()
	return nil
}
