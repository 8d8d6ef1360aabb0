package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
)

const validProfileJSON = `{
	"name": "Mario",
	"family_name": "Rossi",
	"fiscal_code": "RSSMRA85T10A562S",
	"email": "mario.rossi@example.com",
	"is_email_validated": true,
	"is_email_enabled": true,
	"is_inbox_enabled": true,
	"is_webhook_enabled": false,
	"accepted_tos_version": 2,
	"preferred_languages": ["it_IT"],
	"date_of_birth": "1985-12-10",
	"version": 7
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry(), "test")
	client := New(Config{
		APIURLPrefix: server.URL + "/",
		RateLimit:    100,
		BurstSize:    10,
	}, metrics)
	return client, metrics
}

func TestClient_GetProfile(t *testing.T) {
	t.Run("decodes a valid profile", func(t *testing.T) {
		var path, auth string
		client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			auth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(validProfileJSON))
		})

		resp, err := client.GetProfile(context.Background(), "tok-1")
		require.NoError(t, err)
		require.NotNil(t, resp.Profile)

		assert.Equal(t, "/api/v1/profile", path)
		assert.Equal(t, "Bearer tok-1", auth)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Mario Rossi", resp.Profile.NameSurname())
		assert.Equal(t, "mario.rossi@example.com", resp.Profile.EmailOrEmpty())
		assert.True(t, resp.Profile.IsEmailValidated)
		assert.Equal(t, 7, resp.Profile.Version)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BackendRequestsTotal.WithLabelValues(EndpointProfile, "200")))
	})

	statusTests := []int{http.StatusUnauthorized, http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError}
	for _, status := range statusTests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
				w.Write([]byte(`{"title":"nope"}`))
			})

			resp, err := client.GetProfile(context.Background(), "tok")
			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Nil(t, resp.Profile)
			assert.Equal(t, int32(1), calls.Load())
		})
	}

	t.Run("reports validation failures readably", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"name":"Mario","family_name":"Rossi","fiscal_code":"NOTACODE","email":"bad","version":1}`))
		})

		resp, err := client.GetProfile(context.Background(), "tok")
		require.Error(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, resp.Profile)
		assert.True(t, errors.Is(err, domain.ErrDecode))

		var decodeErr *domain.DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Contains(t, decodeErr.Report, `"NOTACODE" at fiscal_code is not a valid fiscal code`)
		assert.Contains(t, decodeErr.Report, `"bad" at email is not a valid email`)
	})

	t.Run("reports missing required fields", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"fiscal_code":"RSSMRA85T10A562S","version":1}`))
		})

		_, err := client.GetProfile(context.Background(), "tok")
		var decodeErr *domain.DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Contains(t, decodeErr.Report, "value at name is required")
		assert.Contains(t, decodeErr.Report, "value at family_name is required")
	})

	t.Run("reports type mismatches", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"name":"Mario","family_name":"Rossi","fiscal_code":"RSSMRA85T10A562S","version":"seven"}`))
		})

		_, err := client.GetProfile(context.Background(), "tok")
		var decodeErr *domain.DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Contains(t, decodeErr.Report, "at version is not a int")
	})

	t.Run("reports malformed JSON", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"name":`))
		})

		_, err := client.GetProfile(context.Background(), "tok")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDecode))
	})

	t.Run("reports an empty body", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := client.GetProfile(context.Background(), "tok")
		var decodeErr *domain.DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, "empty response body", decodeErr.Report)
	})
}

func TestClient_GetUserDataProcessing(t *testing.T) {
	t.Run("decodes a pending request", func(t *testing.T) {
		var path string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.Write([]byte(`{"choice":"DELETE","status":"PENDING","version":1}`))
		})

		resp, err := client.GetUserDataProcessing(context.Background(), "tok", domain.UserDataProcessingDelete)
		require.NoError(t, err)
		require.NotNil(t, resp.UserData)

		assert.Equal(t, "/api/v1/user-data-processing/DELETE", path)
		assert.Equal(t, domain.UserDataProcessingPending, resp.UserData.Status)
	})

	t.Run("not found has no value", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		resp, err := client.GetUserDataProcessing(context.Background(), "tok", domain.UserDataProcessingDelete)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Nil(t, resp.UserData)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choice":"DELETE","status":"LOST","version":1}`))
		})

		_, err := client.GetUserDataProcessing(context.Background(), "tok", domain.UserDataProcessingDelete)
		var decodeErr *domain.DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Contains(t, decodeErr.Report, `"LOST" at status is not one of [PENDING WIP COMPLETED ABORTED]`)
	})

	t.Run("rejects an unknown choice without calling", func(t *testing.T) {
		var calls atomic.Int32
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})

		_, err := client.GetUserDataProcessing(context.Background(), "tok", "UPLOAD")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Equal(t, int32(0), calls.Load())
	})
}
