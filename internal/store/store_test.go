package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
)

func testProfile(email string) *domain.Profile {
	p := &domain.Profile{
		Name:             "Mario",
		FamilyName:       "Rossi",
		FiscalCode:       "RSSMRA85T10A562S",
		IsEmailValidated: true,
	}
	if email != "" {
		p.Email = &email
	}
	return p
}

func TestStore_ProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Equal(t, PotNone, s.Snapshot().Profile.Kind())

	s.Dispatch(ctx, domain.ProfileLoadRequest())
	assert.Equal(t, PotNoneLoading, s.Snapshot().Profile.Kind())

	p := testProfile("mario@example.com")
	s.Dispatch(ctx, domain.ProfileLoadSuccess(p))
	st := s.Snapshot()
	assert.Equal(t, PotSome, st.Profile.Kind())
	got, _ := st.Profile.Value()
	assert.Same(t, p, got)

	s.Dispatch(ctx, domain.ProfileLoadRequest())
	assert.Equal(t, PotSomeLoading, s.Snapshot().Profile.Kind())

	s.Dispatch(ctx, domain.ProfileLoadFailure(errors.New("response status 500")))
	st = s.Snapshot()
	assert.Equal(t, PotSomeError, st.Profile.Kind())
	got, _ = st.Profile.Value()
	assert.Same(t, p, got)
	assert.EqualError(t, st.Profile.Err(), "response status 500")
}

func TestStore_FailureWithoutValue(t *testing.T) {
	s := New()
	s.Dispatch(context.Background(), domain.ProfileLoadRequest())
	s.Dispatch(context.Background(), domain.ProfileLoadFailure(errors.New("boom")))
	assert.Equal(t, PotNoneError, s.Snapshot().Profile.Kind())
}

func TestStore_SessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	s.Dispatch(ctx, domain.ProfileLoadRequest())
	s.Dispatch(ctx, domain.SessionExpired())

	st := s.Snapshot()
	assert.True(t, st.Session.Expired)
	assert.Equal(t, now, st.Session.ExpiredAt)
	assert.Equal(t, PotNone, st.Profile.Kind())

	s.Dispatch(ctx, domain.ProfileLoadSuccess(testProfile("")))
	assert.False(t, s.Snapshot().Session.Expired)
}

func TestStore_RefreshRequestedRecorded(t *testing.T) {
	s := New()
	s.Dispatch(context.Background(), domain.ProfileRefreshRequested(3, domain.RefreshReasonRetry))

	st := s.Snapshot()
	assert.Equal(t, 3, st.LastRefresh.Attempt)
	assert.Equal(t, domain.RefreshReasonRetry, st.LastRefresh.Reason)
	assert.Equal(t, PotNone, st.Profile.Kind())
}

func TestStore_UserDataProcessing(t *testing.T) {
	ctx := context.Background()
	s := New()
	del := domain.UserDataProcessingDelete

	s.Dispatch(ctx, domain.UserDataLoadRequest(del))
	assert.Equal(t, PotNoneLoading, DeletionStatus(s.Snapshot()).Kind())
	assert.Equal(t, PotNone, s.Snapshot().UserData(domain.UserDataProcessingDownload).Kind())

	s.Dispatch(ctx, domain.UserDataLoadSuccess(del, nil))
	pot := DeletionStatus(s.Snapshot())
	assert.Equal(t, PotSome, pot.Kind())
	v, _ := pot.Value()
	assert.Nil(t, v)

	value := &domain.UserDataProcessing{Choice: del, Status: domain.UserDataProcessingPending, Version: 1}
	s.Dispatch(ctx, domain.UserDataLoadSuccess(del, value))
	v, _ = DeletionStatus(s.Snapshot()).Value()
	assert.Equal(t, value, v)

	s.Dispatch(ctx, domain.UserDataLoadFailure(del, errors.New("boom")))
	assert.Equal(t, PotSomeError, DeletionStatus(s.Snapshot()).Kind())
}

func TestStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	before := s.Snapshot()
	s.Dispatch(ctx, domain.UserDataLoadRequest(domain.UserDataProcessingDelete))

	assert.Equal(t, PotNone, DeletionStatus(before).Kind())
	assert.Equal(t, PotNoneLoading, DeletionStatus(s.Snapshot()).Kind())
}

func TestStore_Hydrate(t *testing.T) {
	s := New()
	p := testProfile("")

	assert.True(t, s.Hydrate(p))
	assert.Equal(t, PotSome, s.Snapshot().Profile.Kind())

	assert.False(t, s.Hydrate(testProfile("x@example.com")))
	got, _ := s.Snapshot().Profile.Value()
	assert.Same(t, p, got)

	assert.False(t, New().Hydrate(nil))
}

func TestStore_SubscribeFiltersByType(t *testing.T) {
	ctx := context.Background()
	s := New()

	ch, cancel := s.Subscribe(4, domain.SignalProfileRefreshRequested)
	defer cancel()

	s.Dispatch(ctx, domain.ProfileLoadRequest())
	s.Dispatch(ctx, domain.ProfileRefreshRequested(1, domain.RefreshReasonUser))

	select {
	case sig := <-ch:
		assert.Equal(t, domain.SignalProfileRefreshRequested, sig.Type)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
	assert.Len(t, ch, 0)
}

func TestStore_SubscribeAll(t *testing.T) {
	ctx := context.Background()
	s := New()

	ch, cancel := s.Subscribe(8)
	defer cancel()

	s.Dispatch(ctx, domain.ProfileLoadRequest())
	s.Dispatch(ctx, domain.SessionExpired())

	assert.Equal(t, domain.SignalProfileLoadRequest, (<-ch).Type)
	assert.Equal(t, domain.SignalSessionExpired, (<-ch).Type)
}

func TestStore_FullBufferDropsOldest(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsWithRegistry(reg, "test")
	s := New(WithMetrics(m))

	ch, cancel := s.Subscribe(2, domain.SignalProfileRefreshRequested)
	defer cancel()

	for i := 1; i <= 3; i++ {
		s.Dispatch(ctx, domain.ProfileRefreshRequested(i, domain.RefreshReasonUser))
	}

	require.Len(t, ch, 2)
	assert.Equal(t, 2, (<-ch).Attempt)
	assert.Equal(t, 3, (<-ch).Attempt)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SignalsDropped))
}

func TestStore_Unsubscribe(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	s.Dispatch(context.Background(), domain.ProfileLoadRequest())
}

func TestStore_Close(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	s.Close()
	_, ok := <-ch
	assert.False(t, ok)

	s.Dispatch(context.Background(), domain.ProfileLoadRequest())
	assert.Equal(t, PotNone, s.Snapshot().Profile.Kind())

	late, _ := s.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestSelectors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		st := New().Snapshot()
		_, ok := ProfileEmail(st)
		assert.False(t, ok)
		assert.False(t, HasProfileEmail(st))
		assert.False(t, IsEmailValidated(st))
		_, ok = NameSurname(st)
		assert.False(t, ok)
		_, ok = FiscalCode(st)
		assert.False(t, ok)
	})

	t.Run("loaded profile", func(t *testing.T) {
		s := New()
		s.Dispatch(ctx, domain.ProfileLoadSuccess(testProfile("mario@example.com")))
		st := s.Snapshot()

		email, ok := ProfileEmail(st)
		assert.True(t, ok)
		assert.Equal(t, "mario@example.com", email)
		assert.True(t, HasProfileEmail(st))
		assert.True(t, IsEmailValidated(st))

		name, ok := NameSurname(st)
		assert.True(t, ok)
		assert.Equal(t, "Mario Rossi", name)

		code, ok := FiscalCode(st)
		assert.True(t, ok)
		assert.Equal(t, "RSSMRA85T10A562S", code)
	})

	t.Run("profile without email", func(t *testing.T) {
		s := New()
		s.Dispatch(ctx, domain.ProfileLoadSuccess(testProfile("")))
		assert.False(t, HasProfileEmail(s.Snapshot()))
	})
}
