package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/siteguide/siteguide/internal/log"
)

func TestServer_GracefulShutdown(t *testing.T) {
	// Grab a free port so parallel test runs don't collide.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	srv := NewServer(nil, &stubAnswerer{}, t.TempDir(), log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, addr)
	}()

	// Let the listener come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error after shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
