package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"scalerrs-portal-api/internal/config"

	"github.com/stretchr/testify/require"
)

func TestNewRequiresHandler(t *testing.T) {
	_, err := New(config.DefaultConfig().Server, nil, nil)
	require.Error(t, err)
}

func TestNewUsesConfiguredAddress(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.Address = "127.0.0.1"
	cfg.Port = 9090

	srv, err := New(cfg, nil, http.NewServeMux())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", srv.httpServer.Addr)
}

func TestRunShutsDownWhenContextCancelled(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.Address = "127.0.0.1"
	cfg.Port = 0

	srv, err := New(cfg, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not return after cancellation")
	}
}
