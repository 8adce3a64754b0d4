// Package server streams an interactive session to browsers over a
// WebSocket. Clients send JSON input events and receive encoded frames as
// binary messages.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dosecast/pkg/config"
	"dosecast/pkg/session"
	"dosecast/pkg/visualization"
)

const (
	// sendBuffer is the number of frames queued per client before it is
	// dropped as too slow
	sendBuffer = 8

	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// maxMessage bounds a client input event
	maxMessage = 4096
)

//go:embed index.html
var indexHTML []byte

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configure frame delivery
type Options struct {
	Encoding visualization.Encoding
	Quality  int

	// Tick is the simulation step between frames
	Tick time.Duration

	Verbose bool
}

// OptionsFromConfig collects the server options from cfg
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	enc, err := visualization.ParseEncoding(cfg.Server.Encoding)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Encoding: enc,
		Quality:  cfg.Server.Quality,
		Tick:     time.Duration(cfg.Server.TickMillis) * time.Millisecond,
		Verbose:  cfg.Output.Verbose,
	}, nil
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Server shares one session between every connected client
type Server struct {
	sess *session.Session
	opts Options

	clients map[*client]bool
	lock    sync.Mutex

	// frameLock serializes render and encode; a rendered image aliases the
	// session's texture until the next render
	frameLock sync.Mutex
}

// New creates a server for sess
func New(sess *session.Session, opts Options) *Server {
	if opts.Tick <= 0 {
		opts.Tick = 16 * time.Millisecond
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	return &Server{
		sess:    sess,
		opts:    opts,
		clients: make(map[*client]bool),
	}
}

// Handler returns the HTTP routes: the viewer page at /, the WebSocket at
// /ws and a single encoded frame at /snapshot
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/snapshot", s.serveSnapshot)
	return mux
}

// ListenAndServe serves on addr and runs the frame loop until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	go s.Run(ctx)

	fmt.Println("Viewer listening on", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Run advances the session every tick and pushes a frame to every client
// whenever the view changed. It returns when ctx is done, after closing all
// clients.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return ctx.Err()
		case now := <-ticker.C:
			s.sess.Tick(now.Sub(last))
			last = now
			s.pushFrame()
		}
	}
}

// pushFrame renders and broadcasts a frame if the session is dirty and
// anyone is watching
func (s *Server) pushFrame() {
	if s.clientCount() == 0 {
		return
	}

	s.frameLock.Lock()
	img, ok := s.sess.Render()
	if !ok {
		s.frameLock.Unlock()
		return
	}
	data, err := visualization.EncodeBytes(img, s.opts.Encoding, s.opts.Quality)
	s.frameLock.Unlock()
	if err != nil {
		log.Printf("Warning: failed to encode frame: %v", err)
		return
	}
	s.broadcast(data)
}

// snapshot renders and encodes a frame regardless of the dirty flag
func (s *Server) snapshot() ([]byte, error) {
	s.frameLock.Lock()
	defer s.frameLock.Unlock()
	return visualization.EncodeBytes(s.sess.Snapshot(), s.opts.Encoding, s.opts.Quality)
}

func (s *Server) clientCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients)
}

// broadcast queues msg for every client, dropping clients whose queue is
// full
func (s *Server) broadcast(msg []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("Warning: dropping slow client %s", c.id)
			close(c.send)
			delete(s.clients, c)
		}
	}
}

// remove unregisters c, closing its queue once
func (s *Server) remove(c *client) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.clients[c] {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Server) closeAll() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", s.opts.Encoding.ContentType())
	_, _ = w.Write(data)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), id: r.RemoteAddr}

	first, err := s.snapshot()
	if err != nil {
		log.Printf("Warning: failed to encode first frame for %s: %v", c.id, err)
	} else {
		c.send <- first
	}

	s.lock.Lock()
	s.clients[c] = true
	s.lock.Unlock()
	if s.opts.Verbose {
		fmt.Printf("Client %s connected\n", c.id)
	}

	go s.readLoop(c)
	go s.writeLoop(c)
}

// readLoop applies input events until the connection fails
func (s *Server) readLoop(c *client) {
	defer func() {
		s.remove(c)
		c.conn.Close()
		if s.opts.Verbose {
			fmt.Printf("Client %s disconnected\n", c.id)
		}
	}()

	c.conn.SetReadLimit(maxMessage)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Warning: read error from %s: %v", c.id, err)
			}
			return
		}
		msg, err := ParseMessage(data)
		if err != nil {
			log.Printf("Warning: %s: %v", c.id, err)
			continue
		}
		if err := Apply(s.sess, msg); err != nil {
			log.Printf("Warning: %s: %s rejected: %v", c.id, msg.Type, err)
		}
	}
}

// writeLoop delivers queued frames and keeps the connection alive with pings
func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
