// Command flame renders affine fractal flames.
//
// It renders a scene file (TOML or YAML) once and saves the frame, renders
// it repeatedly as a benchmark, or serves frames to browsers over
// WebSocket, re-rendering whenever the scene file or a client changes the
// parameters.
//
// Usage:
//
//	flame -scene scenes/hexagon.toml -out hexagon.png
//	flame -preset sierpinski -depth 10 -gpu -bench 500
//	flame -scene scenes/hexagon.toml -watch -serve :8080
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/internal/config"
	"github.com/gogpu/flame/internal/present"
	"github.com/gogpu/flame/render"
)

// fpsInterval is the number of frames between frame-rate reports.
const fpsInterval = 100

type options struct {
	scene     string
	out       string
	gpu       bool
	watch     bool
	serve     string
	bench     int
	verbose   bool
	dump      string
	overrides config.Overrides
}

func main() {
	var o options
	flag.StringVar(&o.scene, "scene", "", "scene file (.toml, .yaml); default is the built-in Sierpinski scene")
	flag.StringVar(&o.out, "out", "flame.png", "output image (.png, .tiff, .bmp)")
	flag.BoolVar(&o.gpu, "gpu", false, "render on the GPU, falling back to software")
	flag.BoolVar(&o.watch, "watch", false, "re-render when the scene file changes")
	flag.StringVar(&o.serve, "serve", "", "serve frames over WebSocket on this address")
	flag.IntVar(&o.bench, "bench", 0, "render this many frames and report the frame rate")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.StringVar(&o.dump, "dump", "", "print the effective scene as toml or yaml and exit")

	ov := &o.overrides
	flag.StringVar(&ov.Preset, "preset", "", "transform set preset (sierpinski, opposite-corners, quadrants)")
	flag.IntVar(&ov.Width, "width", 0, "viewport width")
	flag.IntVar(&ov.Height, "height", 0, "viewport height")
	flag.IntVar(&ov.Depth, "depth", 0, "recursion depth K")
	flag.StringVar(&ov.Render.Strategy, "strategy", "", "level strategy (instanced, mesh, hybrid)")
	flag.IntVar(&ov.Render.LevelsPerPass, "levels", 0, "levels per pass")
	flag.Float64Var(&ov.Render.RampFactor, "ramp", 0, "per-pass resolution ramp factor (>= 1)")
	flag.StringVar(&ov.Render.Seed, "seed", "", "first-pass seed (bounds, fixed-points)")
	flag.StringVar(&ov.Render.Filter, "filter", "", "intermediate pass filter (nearest, linear)")
	flag.IntVar(&ov.Render.Workers, "workers", 0, "software rasterizer workers (0 = GOMAXPROCS)")
	flag.StringVar(&ov.ToneMap.Mode, "tone", "", "tone map mode (log, gradient)")
	flag.Float64Var(&ov.ToneMap.Bias, "bias", 0, "tone map bias")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	flame.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "flame: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.gpu {
		o.overrides.Render.Backend = "gpu"
	}
	s, err := newSession(o.scene, o.overrides, openBackend)
	if err != nil {
		return err
	}
	defer s.Close()

	if o.dump != "" {
		return s.Scene().Encode(os.Stdout, o.dump)
	}

	out := newReporter()
	switch {
	case o.bench > 0:
		return bench(ctx, s, o.bench, out)
	case o.serve != "" || o.watch:
		return serve(ctx, s, o, out)
	}

	f, err := s.Render(ctx)
	if err != nil {
		return err
	}
	if err := f.Save(o.out); err != nil {
		return err
	}
	out.frame(s, f, o.out)
	return nil
}

// openBackend opens the named backend. "gpu" falls back to software when
// no adapter can be opened.
func openBackend(kind string, workers int) (render.Backend, error) {
	switch kind {
	case "", "software":
		return render.NewSoftwareBackend(workers), nil
	case "gpu":
		b, err := render.OpenGPUBackend()
		if err != nil {
			flame.Logger().Warn("flame: GPU unavailable, using software", "err", err)
			return render.NewSoftwareBackend(workers), nil
		}
		flame.Logger().Info("flame: GPU backend", "adapter", b.AdapterName())
		return b, nil
	}
	return nil, fmt.Errorf("unknown backend %q", kind)
}

// bench renders n frames of the same scene, resetting the pipeline before
// each one, and reports the frame rate every fpsInterval frames.
func bench(ctx context.Context, s *session, n int, out *reporter) error {
	start := time.Now()
	window := start
	var last *render.Frame
	for i := 1; i <= n; i++ {
		if err := s.Reset(); err != nil {
			return err
		}
		f, err := s.Render(ctx)
		if err != nil {
			return err
		}
		last = f
		if i%fpsInterval == 0 {
			now := time.Now()
			fps := fpsInterval / now.Sub(window).Seconds()
			flame.Logger().Info("flame: frame rate", "frames", i, "fps", fmt.Sprintf("%.1f", fps))
			window = now
		}
	}
	out.bench(s, last, n, time.Since(start))
	return nil
}

// serve re-renders on every parameter change until ctx is done. With an
// address it streams frames to browsers; with -watch alone it rewrites the
// output file.
func serve(ctx context.Context, s *session, o options, out *reporter) error {
	g, ctx := errgroup.WithContext(ctx)

	var srv *present.Server
	if o.serve != "" {
		srv = present.NewServer(present.Options{})
		hs := &http.Server{
			Addr:              o.serve,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			out.listening(o.serve)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			srv.Close()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case u := <-srv.Updates():
					if err := s.Apply(u); err != nil {
						flame.Logger().Warn("flame: rejected update", "update", u, "err", err)
					}
				}
			}
		})
	}

	if o.watch && o.scene != "" {
		g.Go(func() error { return watch(ctx, o.scene, s.Reload) })
	}

	g.Go(func() error {
		frames := 0
		window := time.Now()
		for {
			if err := s.Wait(ctx); err != nil {
				return nil
			}
			f, err := s.Render(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, flame.ErrSuperseded), errors.Is(err, render.ErrRendererClosed):
				// A newer change is already pending.
			case errors.Is(err, flame.ErrDeviceLost):
				if err := s.Rebind(); err != nil {
					return err
				}
			case err != nil:
				flame.Logger().Error("flame: render failed", "err", err)
			default:
				frames++
				if frames%fpsInterval == 0 {
					now := time.Now()
					flame.Logger().Info("flame: frame rate", "frames", frames,
						"fps", fmt.Sprintf("%.1f", fpsInterval/now.Sub(window).Seconds()))
					window = now
				}
				if srv != nil {
					if err := srv.Publish(f); err != nil && !errors.Is(err, present.ErrClosed) {
						return err
					}
					continue
				}
				if err := f.Save(o.out); err != nil {
					return err
				}
				out.frame(s, f, o.out)
			}
		}
	})
	return g.Wait()
}

// reporter prints results to the terminal.
type reporter struct {
	out *termenv.Output
	p   *message.Printer
}

func newReporter() *reporter {
	return &reporter{
		out: termenv.NewOutput(os.Stdout),
		p:   message.NewPrinter(language.English),
	}
}

func (r *reporter) title(s string) string {
	return r.out.String(s).Bold().Foreground(r.out.Color("208")).String()
}

func (r *reporter) frame(s *session, f *render.Frame, path string) {
	b := f.Image.Bounds()
	r.p.Printf("%s %s  %dx%d  passes %d  draws %d  %v\n",
		r.title("flame"), path, b.Dx(), b.Dy(), len(f.Plan.Passes), f.Stats.Draws,
		f.Stats.Elapsed.Round(time.Microsecond))
	r.p.Printf("  backend %s  coverage %.1f%%  lit %d px\n",
		s.BackendName(), 100*f.Coverage(), f.Lit())
	if f.Budget != nil {
		fmt.Println(r.out.String("  " + f.Budget.Error()).Foreground(r.out.Color("1")).String())
	}
}

func (r *reporter) bench(s *session, f *render.Frame, n int, elapsed time.Duration) {
	fps := float64(n) / elapsed.Seconds()
	b := f.Image.Bounds()
	r.p.Printf("%s %d frames of %dx%d in %v on %s\n",
		r.title("bench"), n, b.Dx(), b.Dy(), elapsed.Round(time.Millisecond), s.BackendName())
	r.p.Printf("  %.1f fps  %d draws/frame  %d draws total\n", fps, f.Stats.Draws, n*f.Stats.Draws)
}

func (r *reporter) listening(addr string) {
	fmt.Println(r.title("serving"), "http://"+displayAddr(addr))
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
