package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)

	sm = NewShutdownManager(NewLogger(InfoLevel, io.Discard), time.Second)
	assert.Equal(t, time.Second, sm.shutdownTimeout)
}

func TestShutdown_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), time.Second)

	var order []string
	for _, name := range []string{"postgres", "redis", "otel"} {
		name := name
		sm.RegisterShutdownFunc(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	sm.RegisterShutdownFunc("nil", nil)

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"otel", "redis", "postgres"}, order)
}

func TestShutdown_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), time.Second)

	errRedis := errors.New("redis close failed")
	ran := false
	sm.RegisterShutdownFunc("postgres", func(context.Context) error {
		ran = true
		return nil
	})
	sm.RegisterShutdownFunc("redis", func(context.Context) error { return errRedis })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errRedis)
	assert.True(t, ran, "later functions still run after a failure")
}

func TestShutdown_ExpiredContext(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), time.Second)

	called := false
	sm.RegisterShutdownFunc("postgres", func(context.Context) error {
		called = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestShutdown_StopsServers(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: http.NotFoundHandler()}
	served := make(chan error, 1)
	go func() { served <- server.Serve(listener) }()

	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), time.Second, server, nil)
	require.NoError(t, sm.Shutdown(context.Background()))

	select {
	case err := <-served:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWaitForSignal_ContextCancel(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, io.Discard), time.Second)

	done := false
	sm.RegisterShutdownFunc("worker", func(context.Context) error {
		done = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForSignal(ctx))
	assert.True(t, done)
}
