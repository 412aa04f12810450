package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorkerStatus struct {
	running bool
}

func (s stubWorkerStatus) Running() bool {
	return s.running
}

func TestWorkerHandler_QueueStatus(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		want    string
	}{
		{"running", true, "Queue worker is running"},
		{"stopped", false, "Queue worker stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWorkerHandler(stubWorkerStatus{running: tt.running})

			r := chi.NewRouter()
			r.Route("/worker", func(r chi.Router) {
				h.RegisterRoutes(r)
			})

			req := httptest.NewRequest(http.MethodGet, "/worker/queue/status", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestMetricsHandler_RealtimeMetrics(t *testing.T) {
	queue := &fakeQueue{
		depth: func(ctx context.Context, key string) (int64, error) {
			switch key {
			case "jobs":
				return 4, nil
			case "jobs_failed":
				return 2, nil
			}
			return 0, nil
		},
	}

	h := NewMetricsHandler(NewMetrics(), queue, "jobs")

	req := httptest.NewRequest(http.MethodGet, "/metrics/realtime", nil)
	rec := httptest.NewRecorder()
	h.RealtimeMetrics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got QueueMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.Pending)
	assert.Equal(t, int64(2), got.Failed)
}
