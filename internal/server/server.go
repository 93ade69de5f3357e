// Package server implements the TCP intake endpoint: newline-delimited
// JSON lines from scrapers, fire-and-forget (no responses), with an idle
// connection reaper.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gwngames/persister/internal/config"
)

// readChunkSize is the per-read buffer size on a connection.
const readChunkSize = 1024

// Handler consumes one trimmed, non-empty wire line.
type Handler func(ctx context.Context, line []byte)

type connection struct {
	id         string
	conn       net.Conn
	lastActive time.Time
}

// Server accepts scraper connections and feeds complete lines to the
// handler. Each connection gets its own worker; a reaper closes
// connections idle beyond the configured threshold.
type Server struct {
	cfg     config.ServerConfig
	handler Handler
	log     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*connection

	workers sync.WaitGroup
}

// New creates a Server with the given handler.
func New(cfg config.ServerConfig, handler Handler) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     zap.L().With(zap.String("component", "server")),
		conns:   make(map[string]*connection),
	}
}

// Run binds the listener and serves until ctx is cancelled. On
// cancellation it stops accepting, closes every tracked connection and
// joins all workers.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return eris.Wrapf(err, "server: listen on %s", s.cfg.Addr())
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		s.closeAll()
		return nil
	})
	g.Go(func() error {
		return s.acceptLoop(gctx)
	})
	g.Go(func() error {
		s.reapLoop(gctx)
		return nil
	})

	err = g.Wait()
	s.workers.Wait()
	s.log.Info("server stopped")
	return err
}

// Addr returns the bound listener address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnections returns the number of tracked connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return eris.Wrap(err, "server: accept")
		}

		c, ok := s.register(conn)
		if !ok {
			s.log.Warn("connection limit reached, rejecting",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Int("max_connections", s.cfg.MaxConnections))
			_ = conn.Close()
			continue
		}

		s.log.Info("accepted connection",
			zap.String("conn_id", c.id),
			zap.String("remote", conn.RemoteAddr().String()))

		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			s.handleConn(ctx, c)
		}()
	}
}

func (s *Server) register(conn net.Conn) (*connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxConnections > 0 && len(s.conns) >= s.cfg.MaxConnections {
		return nil, false
	}
	c := &connection{id: uuid.NewString(), conn: conn, lastActive: time.Now()}
	s.conns[c.id] = c
	return c, true
}

func (s *Server) touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[id]; ok {
		c.lastActive = time.Now()
	}
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// handleConn reads the connection in fixed-size chunks, splits on '\n'
// and hands each trimmed non-empty line to the handler. It returns on
// EOF, read timeout or socket error; cleanup runs on every exit path.
func (s *Server) handleConn(ctx context.Context, c *connection) {
	defer func() {
		s.remove(c.id)
		_ = c.conn.Close()
		s.log.Info("connection closed", zap.String("conn_id", c.id))
	}()

	readTimeout := time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second
	buf := make([]byte, readChunkSize)
	var pending []byte

	for {
		if readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			s.touch(c.id)
			pending = append(pending, buf[:n]...)

			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := bytes.TrimSpace(pending[:i])
				pending = pending[i+1:]
				if len(line) == 0 {
					continue
				}
				s.handler(ctx, line)
			}
		}
		if err != nil {
			var nerr net.Error
			switch {
			case errors.Is(err, io.EOF):
				s.log.Debug("connection closed by peer", zap.String("conn_id", c.id))
			case errors.As(err, &nerr) && nerr.Timeout():
				s.log.Info("connection timed out", zap.String("conn_id", c.id))
			default:
				s.log.Debug("read error",
					zap.String("conn_id", c.id),
					zap.Error(err))
			}
			return
		}
	}
}

// reapLoop wakes on the configured tick and closes connections whose last
// activity is older than the idle threshold. Closing surfaces as a read
// error in the connection's worker, which runs the cleanup path.
func (s *Server) reapLoop(ctx context.Context) {
	tick := time.Duration(s.cfg.UnactiveConnListenSeconds) * time.Second
	if tick <= 0 {
		tick = time.Minute
	}
	idle := time.Duration(s.cfg.MaxUnactiveConnectionSeconds) * time.Second

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range s.idleConns(idle) {
				s.log.Info("closing idle connection", zap.String("conn_id", c.id))
				_ = c.conn.Close()
			}
		}
	}
}

func (s *Server) idleConns(idle time.Duration) []*connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	var out []*connection
	for _, c := range s.conns {
		if c.lastActive.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) closeAll() {
	s.mu.Lock()
	ln := s.listener
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.conn.Close()
	}
}
