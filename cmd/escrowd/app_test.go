package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/escrow/api"
	"github.com/xraph/escrow/linkstore"
	"github.com/xraph/escrow/store/memory"
)

func TestAppServesAPIIndexAndMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Owner, cfg.Relayer = "owner", "relayer"
	cfg.Linkstore.Serve = true
	cfg.Linkstore.ContractAddress = "0xescrow"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(cfg, memory.New(), logger)
	require.NoError(t, err)
	require.NoError(t, a.engine.Start(context.Background()))

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(api.CallerHeader, "alice")
		rr := httptest.NewRecorder()
		a.router.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, call(http.MethodPost, "/escrow/deposit", `{"amount":100}`).Code)
	require.Equal(t, http.StatusCreated, call(http.MethodPost, "/escrow/vouchers", `{"amounts":[40]}`).Code)

	// Stopping the engine drains the indexer.
	require.NoError(t, a.engine.Stop())

	rr := call(http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []linkstore.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "0xescrow", recs[0].ContractAddress)
	assert.Equal(t, "alice", recs[0].Pledger)

	mr := httptest.NewRecorder()
	a.metrics.ServeHTTP(mr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, mr.Code)
	assert.Contains(t, mr.Body.String(), "escrow_deposits")
	assert.Contains(t, mr.Body.String(), "escrow_vouchers_minted")
}

func TestAppUsesJWTWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Owner = "owner"
	cfg.Auth = AuthConfig{Mode: "jwt", JWTSecret: "secret"}

	a, err := newApp(cfg, memory.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, a.engine.Start(context.Background()))
	t.Cleanup(func() { _ = a.engine.Stop() })

	req := httptest.NewRequest(http.MethodPost, "/escrow/deposit", strings.NewReader(`{"amount":1}`))
	req.Header.Set(api.CallerHeader, "alice")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
