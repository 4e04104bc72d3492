// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// mockService counts starts and fails the first failFirst runs.
type mockService struct {
	name      string
	failFirst int32
	starts    atomic.Int32
	stops     atomic.Int32
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.starts.Add(1)
	if n <= m.failFirst {
		return errors.New("transient failure")
	}
	<-ctx.Done()
	m.stops.Add(1)
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   TreeConfig
		want TreeConfig
	}{
		{"zero config", TreeConfig{}, DefaultTreeConfig()},
		{
			name: "explicit values kept",
			in:   TreeConfig{FailureThreshold: 3, FailureDecay: 10, FailureBackoff: time.Second, ShutdownTimeout: 2 * time.Second},
			want: TreeConfig{FailureThreshold: 3, FailureDecay: 10, FailureBackoff: time.Second, ShutdownTimeout: 2 * time.Second},
		},
		{
			name: "partial config",
			in:   TreeConfig{FailureBackoff: time.Second},
			want: TreeConfig{FailureThreshold: 5, FailureDecay: 30, FailureBackoff: time.Second, ShutdownTimeout: 10 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := NewSupervisorTree(quietLogger(), tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if tree.Root() == nil {
				t.Fatal("root supervisor should not be nil")
			}
			if tree.config != tt.want {
				t.Errorf("config = %+v, want %+v", tree.config, tt.want)
			}
		})
	}
}

func TestSupervisorTree_Lifecycle(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureBackoff:  10 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	pruner := &mockService{name: "session-pruner"}
	server := &mockService{name: "http-server"}
	tree.AddMaintenanceService(pruner)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return pruner.starts.Load() == 1 && server.starts.Load() == 1 })
	cancel()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
	if pruner.stops.Load() != 1 || server.stops.Load() != 1 {
		t.Errorf("stops = %d/%d, want 1/1", pruner.stops.Load(), server.stops.Load())
	}
	if report, err := tree.UnstoppedServiceReport(); err != nil || len(report) != 0 {
		t.Errorf("unstopped services = %v (err %v)", report, err)
	}
}

func TestSupervisorTree_RestartIsolatedToLayer(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}

	flaky := &mockService{name: "store-probe", failFirst: 2}
	server := &mockService{name: "http-server"}
	tree.AddMaintenanceService(flaky)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return flaky.starts.Load() >= 3 })
	cancel()
	<-errCh

	if server.starts.Load() != 1 {
		t.Errorf("http-server started %d times, a maintenance failure must not restart it", server.starts.Load())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
