package alert

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/your-org/lev-meanrev-bot/internal/model"
)

// MockSink is a mock for the Notifier interface.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(message string) error {
	args := m.Called(message)
	return args.Error(0)
}

func (m *MockSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestBufferedNotifier_CombinesMessages(t *testing.T) {
	sink := new(MockSink)
	sent := make(chan string, 1)
	sink.On("Send", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { sent <- args.String(0) }).
		Return(nil).
		Once()

	n, err := NewBufferedNotifier(sink, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, n.Send("message 1"))
	require.NoError(t, n.Send("message 2"))
	sink.AssertNotCalled(t, "Send", mock.Anything)

	select {
	case content := <-sent:
		assert.True(t, strings.HasPrefix(content, "--- Decision Report (2)"))
		assert.Contains(t, content, "message 1")
		assert.Contains(t, content, "message 2")
	case <-time.After(2 * time.Second):
		t.Fatal("buffered messages were never forwarded")
	}

	sink.On("Close").Return(nil).Once()
	require.NoError(t, n.Close())
	sink.AssertExpectations(t)
}

func TestBufferedNotifier_CloseSendsRemaining(t *testing.T) {
	sink := new(MockSink)
	sink.On("Send", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "final message") })).Return(nil).Once()
	sink.On("Close").Return(nil).Once()

	n, err := NewBufferedNotifier(sink, time.Hour, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, n.Send("final message"))
	require.NoError(t, n.Close())
	sink.AssertExpectations(t)

	assert.ErrorIs(t, n.Send("late"), ErrClosed)
	assert.NoError(t, n.Close(), "second close is a no-op")
}

func TestBufferedNotifier_SinkErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := new(MockSink)
	sink.On("Send", mock.Anything).Return(errors.New("sink down")).Once()
	sink.On("Close").Return(nil).Once()

	n, err := NewBufferedNotifier(sink, time.Hour, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, n.Send("x"))
	require.NoError(t, n.Close())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to forward buffered notifications", logs.All()[0].Message)
}

func TestNewBufferedNotifier_Invalid(t *testing.T) {
	_, err := NewBufferedNotifier(nil, time.Second, nil)
	assert.Error(t, err)
	_, err = NewBufferedNotifier(NewNoOpNotifier(), 0, nil)
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))
	require.NoError(t, n.Send("hello"))
	require.NoError(t, n.Close())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].ContextMap()["message"])
}

func TestFormatDecision(t *testing.T) {
	st := model.PositionState{Held: model.LongLeveraged, IsLeveraged: true, Shares: 1, EntryPrice: 10, Equity: 1234.5, DaysHeld: 0}

	got := FormatDecision(model.Decision{Action: model.Buy, Target: model.LongLeveraged, Reason: "oversold entry", Confidence: 4.0 / 6, Passed: 4, Total: 6}, st)
	assert.Equal(t, "[BUY] LONG_LEVERAGED | oversold entry | confidence 0.67 (4/6) | held LONG_LEVERAGED, equity 1234.50, day 0", got)

	got = FormatDecision(model.ErrorHold(model.Safe, errors.New("feed down")), model.PositionState{})
	assert.Equal(t, "[ERROR HOLD] feed down | held SAFE", got)
}
