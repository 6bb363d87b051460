// Package present streams rendered frames to browsers over WebSocket and
// receives parameter updates from them.
package present

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gogpu/flame"
	"github.com/gogpu/flame/render"
)

//go:embed index.html
var indexHTML []byte

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("present: server closed")

// FrameMessage is the JSON message sent to clients for every frame.
type FrameMessage struct {
	Generation uint64  `json:"generation"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Passes     int     `json:"passes"`
	Draws      int     `json:"draws"`
	ElapsedMS  float64 `json:"elapsed_ms"`
	Budget     string  `json:"budget,omitempty"`
	PNG        []byte  `json:"png"`
}

// Update is a parameter change requested by a client. Zero fields are
// left unchanged.
type Update struct {
	Preset   string  `json:"preset,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Depth    int     `json:"depth,omitempty"`
	ToneMode string  `json:"tone_mode,omitempty"`
	Bias     float64 `json:"bias,omitempty"`
}

// Options configure a Server.
type Options struct {
	// OriginPatterns are passed to websocket.AcceptOptions. Empty allows
	// same-origin requests only.
	OriginPatterns []string

	// WriteTimeout bounds sending one frame to one client (default 5s).
	WriteTimeout time.Duration
}

type client struct {
	frames chan *FrameMessage
}

// Server fans frames out to connected clients. Each client holds at most
// one pending frame; a slow client skips frames instead of stalling
// Publish.
type Server struct {
	opts    Options
	updates chan Update
	done    chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
	last    *FrameMessage
	closed  bool
}

// NewServer returns a server with no clients.
func NewServer(opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Server{
		opts:    opts,
		updates: make(chan Update, 16),
		done:    make(chan struct{}),
		clients: make(map[*client]struct{}),
	}
}

// Handler serves the viewer page at "/", the latest frame at "/frame.png"
// and the WebSocket endpoint at "/ws".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/frame.png", s.serveFrame)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	})
	return mux
}

// Updates returns parameter changes sent by clients.
func (s *Server) Updates() <-chan Update { return s.updates }

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Publish encodes f as PNG and queues it for every client. It does not
// wait for clients to receive it.
func (s *Server) Publish(f *render.Frame) error {
	var buf bytes.Buffer
	if err := f.Encode(&buf, "png"); err != nil {
		return err
	}
	m := &FrameMessage{
		Generation: f.Generation,
		Width:      f.Image.Bounds().Dx(),
		Height:     f.Image.Bounds().Dy(),
		Draws:      f.Stats.Draws,
		ElapsedMS:  float64(f.Stats.Elapsed) / float64(time.Millisecond),
		PNG:        buf.Bytes(),
	}
	if f.Plan != nil {
		m.Passes = len(f.Plan.Passes)
	}
	if f.Budget != nil {
		m.Budget = f.Budget.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.last = m
	for c := range s.clients {
		offer(c.frames, m)
	}
	return nil
}

// offer replaces any pending frame with m.
func offer(ch chan *FrameMessage, m *FrameMessage) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- m:
	default:
	}
}

// Close disconnects all clients. Publish fails afterwards.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Server) add(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	if s.last != nil {
		offer(c.frames, s.last)
	}
	return true
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	m := s.last
	s.mu.Unlock()
	if m == nil {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(m.PNG)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		flame.Logger().Warn("present: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer c.CloseNow()

	cl := &client{frames: make(chan *FrameMessage, 1)}
	if !s.add(cl) {
		c.Close(websocket.StatusGoingAway, "server closed")
		return
	}
	defer s.remove(cl)
	flame.Logger().Info("present: client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		s.readUpdates(ctx, c)
	}()

	for {
		select {
		case <-s.done:
			c.Close(websocket.StatusGoingAway, "server closed")
			return
		case <-ctx.Done():
			flame.Logger().Info("present: client disconnected", "remote", r.RemoteAddr)
			return
		case m := <-cl.frames:
			wctx, wcancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := wsjson.Write(wctx, c, m)
			wcancel()
			if err != nil {
				flame.Logger().Debug("present: write failed", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}
}

func (s *Server) readUpdates(ctx context.Context, c *websocket.Conn) {
	for {
		var u Update
		if err := wsjson.Read(ctx, c, &u); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				flame.Logger().Debug("present: read failed", "err", err)
			}
			return
		}
		select {
		case s.updates <- u:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
