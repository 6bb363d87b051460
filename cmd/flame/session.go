package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/internal/config"
	"github.com/gogpu/flame/internal/present"
	"github.com/gogpu/flame/render"
)

// backendOpener opens a backend by name.
type backendOpener func(kind string, workers int) (render.Backend, error)

type backendKey struct {
	kind    string
	workers int
}

// session owns the renderer for one scene. Parameter changes from the
// scene file, flags and clients go through it; each change resets the
// renderer and wakes Wait.
type session struct {
	path    string
	open    backendOpener
	changed chan struct{}

	mu        sync.Mutex
	overrides config.Overrides
	scene     *config.Scene
	opts      render.Options
	key       backendKey
	r         *render.Renderer
}

func newSession(path string, ov config.Overrides, open backendOpener) (*session, error) {
	s := &session{
		path:      path,
		open:      open,
		changed:   make(chan struct{}, 1),
		overrides: ov,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the scene file again and applies the session overrides.
// On error the previous scene stays in effect.
func (s *session) Reload() error {
	sc := config.Default()
	if s.path != "" {
		var err error
		if sc, err = config.Load(s.path); err != nil {
			return err
		}
	}
	s.mu.Lock()
	ov := s.overrides
	s.mu.Unlock()
	if err := sc.Apply(ov); err != nil {
		return err
	}
	if err := s.use(sc); err != nil {
		return err
	}
	flame.Logger().Info("flame: scene loaded", "name", sc.Name, "path", s.path)
	return nil
}

// Apply merges a client update onto the current scene. The update also
// joins the session overrides so that later reloads keep it.
func (s *session) Apply(u present.Update) error {
	ov := config.Overrides{
		Preset:  u.Preset,
		Width:   u.Width,
		Height:  u.Height,
		Depth:   u.Depth,
		ToneMap: config.ToneMap{Mode: u.ToneMode, Bias: u.Bias},
	}
	s.mu.Lock()
	sc := *s.scene
	s.mu.Unlock()
	if err := sc.Apply(ov); err != nil {
		return err
	}
	if err := s.use(&sc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides.Merge(ov)
}

// use makes sc current. A change of renderer options or backend replaces
// the renderer; any other change is a parameter update.
func (s *session) use(sc *config.Scene) error {
	p, err := sc.Params()
	if err != nil {
		return err
	}
	opts, err := sc.Options()
	if err != nil {
		return err
	}
	key := backendKey{kind: sc.Render.Backend, workers: sc.Render.Workers}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r == nil || opts != s.opts || key != s.key {
		b, err := s.open(key.kind, key.workers)
		if err != nil {
			return err
		}
		r, err := render.NewRenderer(b, opts)
		if err != nil {
			b.Close()
			return err
		}
		if s.r != nil {
			if err := s.r.Close(); err != nil {
				flame.Logger().Warn("flame: close renderer", "err", err)
			}
		}
		s.r, s.opts, s.key = r, opts, key
	}
	if err := s.r.Update(p); err != nil {
		return err
	}
	s.scene = sc
	s.notify()
	return nil
}

func (s *session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Wait blocks until the parameters change or ctx is done.
func (s *session) Wait(ctx context.Context) error {
	select {
	case <-s.changed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset restarts the pipeline with unchanged parameters.
func (s *session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.r.Update(s.r.Params()); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Rebind replaces a lost backend with a freshly opened one.
func (s *session) Rebind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.open(s.key.kind, s.key.workers)
	if err != nil {
		return fmt.Errorf("reopen backend: %w", err)
	}
	if err := s.r.Rebind(b); err != nil {
		b.Close()
		return err
	}
	s.notify()
	return nil
}

// Render renders the current parameters.
func (s *session) Render(ctx context.Context) (*render.Frame, error) {
	s.mu.Lock()
	r := s.r
	s.mu.Unlock()
	return r.Render(ctx)
}

// Scene returns the current scene.
func (s *session) Scene() *config.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// BackendName returns the name of the current backend.
func (s *session) BackendName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Backend().Name()
}

// Close closes the renderer and its backend.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Close()
}
