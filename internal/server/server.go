package server

import (
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nekgo/nekhttp/internal/conn"
	"github.com/nekgo/nekhttp/internal/request"
	"github.com/nekgo/nekhttp/internal/response"
)

// Handler handles one parsed request by mutating and sending the response.
type Handler func(r *request.Request, w *response.Writer)

// route pairs a registered (method, pattern) with its handler. Routes are
// kept in registration order and the first match wins; patterns are exact
// string matches against the request path.
type route struct {
	method  string
	pattern string
	handler Handler
}

// Server owns the route table and, once listening, the connection and the
// accept loop that drives it. Routes must not be registered after Listen.
type Server struct {
	routes      []route
	c           *conn.Conn
	closed      atomic.Bool
	log         zerolog.Logger
	table       response.StatusTable
	readTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the accept loop.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithStatusTable sets the reason-phrase table handed to every response.
func WithStatusTable(t response.StatusTable) Option {
	return func(s *Server) { s.table = t }
}

// WithReadTimeout bounds how long a connection may take to deliver a full
// request before it is answered with 400 and closed.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// New returns a Server with no routes and nothing listening.
func New(opts ...Option) *Server {
	s := &Server{
		log:         zerolog.Nop(),
		table:       response.DefaultStatusTable(),
		readTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a handler for the given method and path pattern. Methods
// are case-sensitive; patterns match the request path exactly.
func (s *Server) Register(method, pattern string, h Handler) *Server {
	s.routes = append(s.routes, route{method: method, pattern: pattern, handler: h})
	return s
}

// Get registers a handler for GET requests on pattern.
func (s *Server) Get(pattern string, h Handler) *Server {
	return s.Register("GET", pattern, h)
}

// Post registers a handler for POST requests on pattern.
func (s *Server) Post(pattern string, h Handler) *Server {
	return s.Register("POST", pattern, h)
}

// Listen binds the port and starts the accept loop in a background
// goroutine; the caller does not block. Connections are handled strictly
// one at a time.
func (s *Server) Listen(port int) error {
	c := conn.New(port)
	if err := c.Listen(); err != nil {
		return err
	}
	s.c = c
	s.log.Info().Int("port", port).Msg("listening")
	go s.loop()
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.c == nil {
		return nil
	}
	return s.c.Addr()
}

// Close stops the accept loop and releases the sockets. Idempotent.
func (s *Server) Close() error {
	if s == nil || s.closed.Swap(true) {
		return nil
	}
	if s.c != nil {
		s.c.Close()
	}
	return nil
}

// loop accepts, parses, dispatches and responds, sequentially, until the
// server is closed or accepting fails. Accept-level failures terminate the
// loop; there is no automatic restart.
func (s *Server) loop() {
	for {
		if err := s.c.Accept(); err != nil {
			if s.closed.Load() {
				return
			}
			s.log.Error().Err(err).Msg("accept failed, loop exiting")
			return
		}
		s.handle()
		s.c.ClosePeer()
	}
}

// handle drains one request from the accepted peer and answers it.
func (s *Server) handle() {
	if s.readTimeout > 0 {
		_ = s.c.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	req := request.New()
	buf := make([]byte, 256)
	for !req.Done() {
		n, err := s.c.Receive(buf)
		if n > 0 {
			if _, perr := req.Parse(buf[:n]); perr != nil {
				s.log.Warn().Err(perr).Msg("malformed request")
				s.reject(req)
				return
			}
		}
		if req.Done() {
			break
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, os.ErrDeadlineExceeded) {
				s.log.Warn().Err(err).Msg("incomplete request")
				s.reject(req)
				return
			}
			if s.closed.Load() {
				return
			}
			s.log.Error().Err(err).Msg("receive failed")
			return
		}
	}

	w := response.NewWriter(req, s.c, s.table)
	h := s.match(req.Method, req.Path)
	if h == nil {
		w.SetStatus(response.StatusNotFound)
		if err := w.Send(nil); err != nil {
			s.log.Error().Err(err).Msg("send failed")
		}
		return
	}
	h(req, w)
	if !w.Sent() {
		if err := w.Send(nil); err != nil {
			s.log.Error().Err(err).Msg("send failed")
		}
	}
}

// reject answers a request that never parsed with 400 Bad Request. The
// request line may be incomplete, so the status-line fields are defaulted.
func (s *Server) reject(req *request.Request) {
	if req.Proto == "" {
		req.Proto, req.ProtoVersion = "HTTP", "1.1"
	}
	w := response.NewWriter(req, s.c, s.table)
	w.SetStatus(response.StatusBadRequest)
	if err := w.Send(nil); err != nil {
		s.log.Error().Err(err).Msg("send failed")
	}
}

// match returns the handler of the first route registered for method whose
// pattern equals path, or nil.
func (s *Server) match(method, path string) Handler {
	for _, rt := range s.routes {
		if rt.method == method && rt.pattern == path {
			return rt.handler
		}
	}
	return nil
}
