package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	cases := []struct {
		name     string
		postgres Check
		redis    Check
		status   int
		want     string
	}{
		{"all up", up, up, http.StatusOK, "ok"},
		{"redis down", up, down, http.StatusOK, "degraded"},
		{"postgres down", down, up, http.StatusServiceUnavailable, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Service: &fakeScheduler{}, Postgres: tc.postgres, Redis: tc.redis, Logger: zerolog.Nop()})
			rec := do(t, h, http.MethodGet, "/health/ready", "")
			require.Equal(t, tc.status, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.want, resp.Status)
		})
	}
}

func TestLiveness(t *testing.T) {
	h := NewRouter(RouterConfig{Service: &fakeScheduler{}, Version: "1.2.3", Logger: zerolog.Nop()})
	rec := do(t, h, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
}
