// Package alert handles sending notifications.
// Delivery itself is left to the sink behind the Notifier interface.
package alert

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("notifier is closed")

// Notifier is the interface for sending alert messages.
type Notifier interface {
	Send(message string) error
	Close() error
}

// NoOpNotifier is a notifier that does nothing. It is used when alerting is disabled.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing and returns nil.
func (n *NoOpNotifier) Send(message string) error { return nil }

// Close does nothing and returns nil.
func (n *NoOpNotifier) Close() error { return nil }

// LogNotifier writes every message to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the message at info level.
func (n *LogNotifier) Send(message string) error {
	n.logger.Info("notification", zap.String("message", message))
	return nil
}

// Close flushes the logger.
func (n *LogNotifier) Close() error {
	_ = n.logger.Sync()
	return nil
}

// BufferedNotifier collects messages and forwards them to a sink as one
// combined report per interval. Close forwards whatever is still buffered.
type BufferedNotifier struct {
	sink     Notifier
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	buffer []string
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBufferedNotifier starts the flush loop. interval must be positive.
func NewBufferedNotifier(sink Notifier, interval time.Duration, logger *zap.Logger) (*BufferedNotifier, error) {
	if sink == nil {
		return nil, errors.New("buffered notifier needs a sink")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("buffer interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &BufferedNotifier{
		sink:     sink,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n, nil
}

// Send queues a message.
func (n *BufferedNotifier) Send(message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	n.buffer = append(n.buffer, message)
	return nil
}

// Close stops the loop, forwards the remaining messages and closes the sink.
func (n *BufferedNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
	n.flush()
	return n.sink.Close()
}

func (n *BufferedNotifier) run() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.flush()
		case <-n.done:
			return
		}
	}
}

func (n *BufferedNotifier) flush() {
	n.mu.Lock()
	msgs := n.buffer
	n.buffer = nil
	n.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- Decision Report (%d) ---\n", len(msgs))
	b.WriteString(strings.Join(msgs, "\n"))
	if err := n.sink.Send(b.String()); err != nil {
		n.logger.Error("Failed to forward buffered notifications", zap.Error(err), zap.Int("messages", len(msgs)))
	}
}

// FormatDecision renders the plain-text summary sent after a live cycle.
func FormatDecision(d model.Decision, st model.PositionState) string {
	if d.IsError() {
		return fmt.Sprintf("[ERROR HOLD] %s | held %s", d.Err, d.Target)
	}
	summary := fmt.Sprintf("[%s] %s | %s | confidence %.2f", d.Action, d.Target, d.Reason, d.Confidence)
	if d.Total > 0 {
		summary += fmt.Sprintf(" (%d/%d)", d.Passed, d.Total)
	}
	return summary + fmt.Sprintf(" | held %s, equity %.2f, day %d", st.Held, st.Equity, st.DaysHeld)
}
