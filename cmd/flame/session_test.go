package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/flame/internal/config"
	"github.com/gogpu/flame/internal/present"
	"github.com/gogpu/flame/render"
)

func softwareOnly(t *testing.T) (backendOpener, *int) {
	t.Helper()
	opened := 0
	return func(kind string, workers int) (render.Backend, error) {
		opened++
		return render.NewSoftwareBackend(1), nil
	}, &opened
}

func writeScene(t *testing.T, path, src string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newTestSession(t *testing.T, path string, ov config.Overrides) (*session, *int) {
	t.Helper()
	open, opened := softwareOnly(t)
	s, err := newSession(path, ov, open)
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, opened
}

func TestSessionDefaultScene(t *testing.T) {
	s, _ := newTestSession(t, "", config.Overrides{Width: 64, Height: 48, Depth: 2})

	ctx := context.Background()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("initial Wait() error = %v", err)
	}
	f, err := s.Render(ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if b := f.Image.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("image %v, want 64x48", b)
	}
	if len(f.Plan.Passes) != 3 {
		t.Errorf("passes = %d, want 3", len(f.Plan.Passes))
	}
	if s.BackendName() != "software" {
		t.Errorf("BackendName() = %q", s.BackendName())
	}
}

func TestSessionReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	writeScene(t, path, "width = 32\nheight = 32\ndepth = 1\npreset = \"quadrants\"\n")
	s, opened := newTestSession(t, path, config.Overrides{})

	if got := s.Scene().Preset; got != "quadrants" {
		t.Fatalf("Preset = %q", got)
	}

	// A parameter change keeps the renderer.
	writeScene(t, path, "width = 32\nheight = 32\ndepth = 3\npreset = \"quadrants\"\n")
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if s.Scene().Depth != 3 || *opened != 1 {
		t.Errorf("depth %d, backends opened %d; want 3, 1", s.Scene().Depth, *opened)
	}

	// An options change replaces it.
	writeScene(t, path, "width = 32\nheight = 32\ndepth = 3\n[render]\nstrategy = \"mesh\"\n")
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if *opened != 2 {
		t.Errorf("backends opened %d, want 2", *opened)
	}
	f, err := s.Render(context.Background())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if f.Image.Bounds().Dx() != 32 {
		t.Errorf("image %v", f.Image.Bounds())
	}

	// A broken file leaves the scene in place.
	writeScene(t, path, "width = \n")
	if err := s.Reload(); err == nil {
		t.Error("Reload() of a broken file should fail")
	}
	if s.Scene().Depth != 3 {
		t.Errorf("depth %d after failed reload, want 3", s.Scene().Depth)
	}
}

func TestSessionApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	writeScene(t, path, "width: 32\nheight: 32\ndepth: 1\n")
	s, _ := newTestSession(t, path, config.Overrides{})

	if err := s.Apply(present.Update{Preset: "opposite-corners", Depth: 4}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if sc := s.Scene(); sc.Preset != "opposite-corners" || sc.Depth != 4 || sc.Width != 32 {
		t.Errorf("scene after Apply = %+v", sc)
	}

	// Client updates survive a reload of the file.
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if sc := s.Scene(); sc.Preset != "opposite-corners" || sc.Depth != 4 {
		t.Errorf("scene after Reload = %+v", sc)
	}

	if err := s.Apply(present.Update{ToneMode: "sepia"}); err == nil {
		t.Error("Apply() with a bad tone mode should fail")
	}
}

func TestSessionSupersede(t *testing.T) {
	s, _ := newTestSession(t, "", config.Overrides{Width: 64, Height: 64, Depth: 2})
	ctx := context.Background()

	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	// One pending change however many updates arrive.
	if err := s.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := s.Wait(wctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Wait() error = %v, want deadline exceeded", err)
	}
	if _, err := s.Render(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSessionRebind(t *testing.T) {
	s, opened := newTestSession(t, "", config.Overrides{Width: 16, Height: 16, Depth: 1})
	if err := s.Rebind(); err != nil {
		t.Fatalf("Rebind() error = %v", err)
	}
	if *opened != 2 {
		t.Errorf("backends opened %d, want 2", *opened)
	}
	if _, err := s.Render(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestOpenBackend(t *testing.T) {
	b, err := openBackend("software", 1)
	if err != nil || b.Name() != "software" {
		t.Fatalf("openBackend(software) = %v, %v", b, err)
	}
	b.Close()

	if _, err := openBackend("vulkan", 1); err == nil {
		t.Error("openBackend(vulkan) should fail")
	}
}

func TestTouches(t *testing.T) {
	path := filepath.Join("scenes", "a.toml")
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: filepath.Join("scenes", "b.toml"), Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "scenes/./a.toml", Op: fsnotify.Write}, true},
	}
	for _, tt := range tests {
		if got := touches(tt.ev, path); got != tt.want {
			t.Errorf("touches(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	writeScene(t, path, "depth = 1\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	reloaded := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, func() error {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Keep writing until the watcher is registered and reports a change.
	tick := time.NewTicker(3 * watchLag)
	defer tick.Stop()
loop:
	for {
		select {
		case <-reloaded:
			break loop
		case <-tick.C:
			writeScene(t, path, "depth = 2\n")
		case <-ctx.Done():
			t.Fatal("no reload after writing the scene")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch() error = %v", err)
	}
}
