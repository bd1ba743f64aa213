package conn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Conn owns one listening TCP endpoint and at most one accepted peer at a
// time. Operations block; there is no non-blocking spin mode. Conn is safe
// for a closer running concurrently with the goroutine driving
// Accept/Receive/Send.
type Conn struct {
	mu   sync.Mutex
	ln   net.Listener
	peer net.Conn
	port int
}

// OpError wraps the underlying network failure together with the operation
// that raised it (listen, accept, receive, send).
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Operations that require prior setup fail with one of these.
var (
	ErrNotListening = errors.New("socket is not listening")
	ErrNotAccepted  = errors.New("no accepted connection")
)

// New returns a Conn bound to nothing yet.
func New(port int) *Conn {
	return &Conn{port: port}
}

// Port returns the configured port.
func (c *Conn) Port() int {
	return c.port
}

// Listen binds the endpoint on all interfaces and starts listening.
func (c *Conn) Listen() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", c.port))
	if err != nil {
		return &OpError{Op: "listen", Err: err}
	}
	c.mu.Lock()
	c.ln = ln
	c.mu.Unlock()
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (c *Conn) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Accept blocks for the next peer. Any previously accepted peer is closed
// first; Conn holds at most one at a time.
func (c *Conn) Accept() error {
	c.mu.Lock()
	ln := c.ln
	c.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}
	c.ClosePeer()
	peer, err := ln.Accept()
	if err != nil {
		return &OpError{Op: "accept", Err: err}
	}
	c.mu.Lock()
	if c.ln == nil {
		// Closed while blocked in accept; drop the stray peer.
		c.mu.Unlock()
		_ = peer.Close()
		return &OpError{Op: "accept", Err: net.ErrClosed}
	}
	c.peer = peer
	c.mu.Unlock()
	return nil
}

// currentPeer snapshots the accepted peer, or nil.
func (c *Conn) currentPeer() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Receive reads from the accepted peer into buf. It returns 0, io.EOF when
// the peer closed its end of the stream.
func (c *Conn) Receive(buf []byte) (int, error) {
	peer := c.currentPeer()
	if peer == nil {
		return 0, ErrNotAccepted
	}
	n, err := peer.Read(buf)
	if err != nil && err != io.EOF {
		return n, &OpError{Op: "receive", Err: err}
	}
	return n, err
}

// Send writes all of p to the accepted peer, looping on partial writes.
func (c *Conn) Send(p []byte) error {
	peer := c.currentPeer()
	if peer == nil {
		return ErrNotAccepted
	}
	for len(p) > 0 {
		n, err := peer.Write(p)
		if err != nil {
			return &OpError{Op: "send", Err: err}
		}
		p = p[n:]
	}
	return nil
}

// SetReadDeadline bounds how long subsequent Receive calls may block.
func (c *Conn) SetReadDeadline(t time.Time) error {
	peer := c.currentPeer()
	if peer == nil {
		return ErrNotAccepted
	}
	return peer.SetReadDeadline(t)
}

// ClosePeer releases only the accepted peer, keeping the listener open for
// the next Accept. Safe to call with no peer held.
func (c *Conn) ClosePeer() {
	c.mu.Lock()
	peer := c.peer
	c.peer = nil
	c.mu.Unlock()
	if peer != nil {
		_ = peer.Close()
	}
}

// Close releases the accepted peer and the listener. Idempotent; close
// errors are swallowed.
func (c *Conn) Close() {
	c.ClosePeer()
	c.mu.Lock()
	ln := c.ln
	c.ln = nil
	c.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}

// Read makes Conn an io.Reader over the accepted peer.
func (c *Conn) Read(p []byte) (int, error) {
	return c.Receive(p)
}

// Write makes Conn an io.Writer over the accepted peer.
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
