package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/outbox"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/temporal"
)

// mockReader is a mock implementation of MessageReader.
type mockReader struct {
	mock.Mock
}

func (m *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	args := m.Called(ctx)
	return args.Get(0).(kafka.Message), args.Error(1)
}

func (m *mockReader) Close() error {
	return m.Called().Error(0)
}

// feed queues values and then reports io.EOF.
func feed(values ...[]byte) *mockReader {
	r := new(mockReader)
	for _, v := range values {
		r.On("ReadMessage", mock.Anything).Return(kafka.Message{Value: v}, nil).Once()
	}
	r.On("ReadMessage", mock.Anything).Return(kafka.Message{}, io.EOF)
	return r
}

type recordingDispatcher struct {
	mu      sync.Mutex
	signals []domain.Signal
}

func (d *recordingDispatcher) Dispatch(_ context.Context, s domain.Signal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signals = append(d.signals, s)
}

type mockStarter struct {
	mock.Mock
}

func (m *mockStarter) StartRefresh(ctx context.Context, in temporal.RefreshWorkflowInput) (string, string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.String(1), args.Error(2)
}

func command(t *testing.T, cmd RefreshCommand) []byte {
	t.Helper()
	b, err := json.Marshal(cmd)
	require.NoError(t, err)
	return b
}

func TestListener_Run(t *testing.T) {
	d := &recordingDispatcher{}
	reader := feed(
		command(t, RefreshCommand{}),
		[]byte("not json"),
		command(t, RefreshCommand{SessionID: "other"}),
		command(t, RefreshCommand{SessionID: "sess-1", Target: TargetDeletionStatus}),
		command(t, RefreshCommand{Target: "avatar"}),
		command(t, RefreshCommand{Reason: "backoffice"}),
	)

	l := NewListener(reader, d, "sess-1", zerolog.Nop())
	require.NoError(t, l.Run(context.Background()))

	require.Len(t, d.signals, 3)
	assert.Equal(t, domain.ProfileRefreshRequested(1, domain.RefreshReasonCommand), d.signals[0])
	assert.Equal(t, domain.UserDataLoadRequest(domain.UserDataProcessingDelete), d.signals[1])
	assert.Equal(t, "backoffice", d.signals[2].Reason)
}

func TestListener_ReadErrorContinues(t *testing.T) {
	d := &recordingDispatcher{}
	reader := new(mockReader)
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{}, errors.New("rebalance")).Once()
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{Value: command(t, RefreshCommand{})}, nil).Once()
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{}, io.EOF)

	require.NoError(t, NewListener(reader, d, "sess-1", zerolog.Nop()).Run(context.Background()))
	assert.Len(t, d.signals, 1)
}

func TestListener_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := new(mockReader)
	reader.On("ReadMessage", mock.Anything).Return(kafka.Message{}, context.Canceled)

	err := NewListener(reader, &recordingDispatcher{}, "sess-1", zerolog.Nop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListener_Durable(t *testing.T) {
	policy := profile.DefaultRetryPolicy()

	t.Run("starts the workflow", func(t *testing.T) {
		starter := new(mockStarter)
		starter.On("StartRefresh", mock.Anything, temporal.RefreshWorkflowInput{
			SessionID: "sess-1",
			Attempt:   1,
			Reason:    domain.RefreshReasonCommand,
			Retry:     policy,
		}).Return("profile-refresh-sess-1", "run-1", nil)

		d := &recordingDispatcher{}
		l := NewListener(feed(), d, "sess-1", zerolog.Nop(), WithDurableStarter(starter, policy))
		require.NoError(t, l.handle(context.Background(), RefreshCommand{Durable: true}))

		starter.AssertExpectations(t)
		assert.Empty(t, d.signals)
	})

	t.Run("start failure", func(t *testing.T) {
		starter := new(mockStarter)
		starter.On("StartRefresh", mock.Anything, mock.Anything).Return("", "", temporal.ErrConnectionFailed)

		l := NewListener(feed(), &recordingDispatcher{}, "sess-1", zerolog.Nop(), WithDurableStarter(starter, policy))
		err := l.handle(context.Background(), RefreshCommand{Durable: true})
		assert.ErrorIs(t, err, temporal.ErrConnectionFailed)
	})

	t.Run("not configured", func(t *testing.T) {
		l := NewListener(feed(), &recordingDispatcher{}, "sess-1", zerolog.Nop())
		assert.Error(t, l.handle(context.Background(), RefreshCommand{Durable: true}))
	})
}

func TestListener_Close(t *testing.T) {
	reader := new(mockReader)
	reader.On("Close").Return(nil)

	require.NoError(t, NewListener(reader, &recordingDispatcher{}, "sess-1", zerolog.Nop()).Close())
	reader.AssertExpectations(t)
}

func eventValue(t *testing.T, sessionID, workflowID string, s domain.Signal) []byte {
	t.Helper()
	event, err := outbox.NewEmitter(outbox.EmitterConfig{}).Emit(outbox.EmitParams{
		SessionID:  sessionID,
		Signal:     s,
		WorkflowID: workflowID,
	})
	require.NoError(t, err)
	msg, err := outbox.Message(event)
	require.NoError(t, err)
	return msg.Value
}

func TestReplicator_Replicate(t *testing.T) {
	p := &domain.Profile{Name: "Mario", FamilyName: "Rossi", FiscalCode: "RSSMRA85T10A562S"}
	const wf = "profile-refresh-sess-1"

	tests := []struct {
		name       string
		value      []byte
		replicated bool
		wantErr    bool
	}{
		{name: "durable success", value: eventValue(t, "sess-1", wf, domain.ProfileLoadSuccess(p)), replicated: true},
		{name: "durable loading marker", value: eventValue(t, "sess-1", wf, domain.ProfileLoadRequest()), replicated: true},
		{name: "local signal", value: eventValue(t, "sess-1", "", domain.ProfileLoadSuccess(p))},
		{name: "other session", value: eventValue(t, "sess-2", "profile-refresh-sess-2", domain.SessionExpired())},
		{name: "durable re-trigger", value: eventValue(t, "sess-1", wf, domain.ProfileRefreshRequested(2, domain.RefreshReasonRetry))},
		{name: "garbage", value: []byte("{"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDispatcher{}
			r := NewReplicator(feed(), d, "sess-1", zerolog.Nop())

			ok, err := r.replicate(context.Background(), tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.replicated, ok)
			if tt.replicated {
				require.Len(t, d.signals, 1)
				assert.True(t, d.signals[0].Replicated)
			} else {
				assert.Empty(t, d.signals)
			}
		})
	}
}

func TestReplicator_Run(t *testing.T) {
	d := &recordingDispatcher{}
	reader := feed(
		eventValue(t, "sess-1", "profile-refresh-sess-1", domain.ProfileLoadRequest()),
		[]byte("{"),
		eventValue(t, "sess-1", "profile-refresh-sess-1", domain.ProfileLoadFailure(errors.New("response status 500"))),
	)

	require.NoError(t, NewReplicator(reader, d, "sess-1", zerolog.Nop()).Run(context.Background()))

	require.Len(t, d.signals, 2)
	assert.Equal(t, domain.SignalProfileLoadRequest, d.signals[0].Type)
	assert.Equal(t, domain.SignalProfileLoadFailure, d.signals[1].Type)
	assert.EqualError(t, d.signals[1].Err, "response status 500")
}
