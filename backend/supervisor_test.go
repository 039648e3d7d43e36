package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadyFiresOnceForEitherArrivalOrder(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{"backend first", []string{"backend", "window"}},
		{"window first", []string{"window", "backend"}},
		{"backend twice then window", []string{"backend", "backend", "window"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fired int32
			s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })

			for _, step := range tt.order {
				switch step {
				case "backend":
					s.markBackendReady()
				case "window":
					s.WindowLoaded()
				}
			}

			if got := atomic.LoadInt32(&fired); got != 1 {
				t.Errorf("ready fired %d times, want exactly 1", got)
			}
		})
	}
}

func TestReadyNotFiredWithOnlyOneCondition(t *testing.T) {
	var fired int32
	s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })

	s.WindowLoaded()
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("ready fired %d times before backend was ready", got)
	}

	s2 := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })
	s2.markBackendReady()
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("ready fired %d times before window loaded", got)
	}
}

func TestWindowReloadRedeliversReady(t *testing.T) {
	var fired int32
	s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })

	s.markBackendReady()
	s.WindowLoaded()
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Fatalf("ready fired %d times after first load, want 1", got)
	}

	// A reload is a fresh window context that has never seen the event.
	s.WindowLoaded()
	if got := atomic.LoadInt32(&fired); got != 2 {
		t.Errorf("ready fired %d times after reload, want 2", got)
	}
}

func TestDevModeOpensBackendGateImmediately(t *testing.T) {
	var fired int32
	s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })

	if err := s.Start(true, ""); err != nil {
		t.Fatalf("Start(dev) error = %v", err)
	}
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("ready fired before window loaded in dev mode")
	}

	s.WindowLoaded()
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("ready fired %d times, want 1", got)
	}
}

// writeFakeBackend drops a shell script standing in for the backend binary.
func writeFakeBackend(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake backend scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "maglock-backend")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitForFired(t *testing.T, fired *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(fired) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ready fired %d times, want %d", atomic.LoadInt32(fired), want)
}

func TestProductionReadyAfterMarkerOnStdout(t *testing.T) {
	exe := writeFakeBackend(t, `
echo "booting session store"
echo "MAGLOCK-BACKEND-READY"
sleep 3
`)
	var fired int32
	s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })
	defer s.Stop()

	if err := s.Start(false, exe); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.WindowLoaded()

	waitForFired(t, &fired, 1)
}

func TestProductionMarkerBeforeWindowLoad(t *testing.T) {
	exe := writeFakeBackend(t, `
echo "MAGLOCK-BACKEND-READY"
sleep 3
`)
	var fired int32
	s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })
	defer s.Stop()

	if err := s.Start(false, exe); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Let the marker land before the window finishes loading.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		ready := s.backendReady
		s.mu.Unlock()
		if ready {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Fatalf("ready fired before window loaded")
	}

	s.WindowLoaded()
	waitForFired(t, &fired, 1)
}

func TestBackendExitBeforeMarkerNeverFires(t *testing.T) {
	exe := writeFakeBackend(t, `
echo "fatal: cannot open session database" >&2
exit 1
`)
	var fired int32
	s := NewSupervisor(func() { atomic.AddInt32(&fired, 1) })

	if err := s.Start(false, exe); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.WindowLoaded()

	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("ready fired %d times for a backend that died before the marker", got)
	}
}

func TestStartSpawnFailure(t *testing.T) {
	s := NewSupervisor(nil)
	if err := s.Start(false, filepath.Join(t.TempDir(), "missing-backend")); err == nil {
		t.Fatal("expected error for missing backend executable")
	}
}
