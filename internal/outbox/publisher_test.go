package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
)

// mockWriter is a mock implementation of MessageWriter.
type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func newTestPublisher(w MessageWriter) (*Publisher, *observability.Metrics) {
	m := observability.NewMetricsWithRegistry(prometheus.NewRegistry(), "test")
	return NewPublisher(NewEmitter(EmitterConfig{}), w, "default", m, zerolog.Nop()), m
}

func TestPublisher_PublishSignal(t *testing.T) {
	w := new(mockWriter)
	p, m := newTestPublisher(w)

	var written []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]kafka.Message) }).
		Return(nil)

	ctx := observability.WithRequestID(context.Background(), "req-9")
	require.NoError(t, p.PublishSignal(ctx, domain.ProfileRefreshRequested(2, domain.RefreshReasonRetry)))

	require.Len(t, written, 1)
	msg := written[0]
	assert.Equal(t, []byte("default"), msg.Key)

	var got wireEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "profile.refresh_requested", got.EventType)
	assert.Equal(t, "default", got.AggregateID)
	assert.Equal(t, "req-9", got.Metadata["correlation_id"])

	var payload domain.RefreshRequestedPayload
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, 2, payload.Attempt)
	assert.Equal(t, domain.RefreshReasonRetry, payload.Reason)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SignalsPublished.WithLabelValues("profile.refresh_requested")))
	w.AssertExpectations(t)
}

func TestPublisher_WriteFailure(t *testing.T) {
	w := new(mockWriter)
	p, m := newTestPublisher(w)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishSignal(context.Background(), domain.SessionExpired())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SignalsPublishFailed.WithLabelValues("session.expired")))
}

func TestPublisher_Run(t *testing.T) {
	w := new(mockWriter)
	p, _ := newTestPublisher(w)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)

	signals := make(chan domain.Signal, 4)
	signals <- domain.ProfileLoadRequest()
	signals <- domain.SessionExpired()
	signals <- domain.Signal{Type: "profile.exploded"}
	signals <- domain.Signal{Type: domain.SignalProfileLoadRequest, Replicated: true}
	close(signals)

	require.NoError(t, p.Run(context.Background(), signals))
	w.AssertNumberOfCalls(t, "WriteMessages", 2)
}

func TestPublisher_RunStopsOnCancel(t *testing.T) {
	p, _ := newTestPublisher(new(mockWriter))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Run(ctx, make(chan domain.Signal)), context.Canceled)
}

func TestPublisher_Close(t *testing.T) {
	w := new(mockWriter)
	p, _ := newTestPublisher(w)
	w.On("Close").Return(nil)

	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestParseMessage(t *testing.T) {
	event, err := NewEmitter(EmitterConfig{}).Emit(EmitParams{
		SessionID:  "sess-1",
		Signal:     domain.ProfileLoadFailure(errors.New("response status 500")),
		WorkflowID: "profile-refresh-sess-1",
	})
	require.NoError(t, err)
	msg, err := Message(event)
	require.NoError(t, err)

	parsed, err := ParseMessage(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, parsed.EventID)
	assert.Equal(t, "sess-1", parsed.AggregateID)
	assert.Equal(t, "profile-refresh-sess-1", parsed.Metadata["workflow_id"])

	s, err := domain.SignalFromEvent(parsed)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalProfileLoadFailure, s.Type)
	assert.EqualError(t, s.Err, "response status 500")

	_, err = ParseMessage([]byte(`{"event_type":""}`))
	assert.Error(t, err)
	_, err = ParseMessage([]byte(`not json`))
	assert.Error(t, err)
}
