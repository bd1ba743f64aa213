package request

import (
	"errors"
	"io"
	"net"
	"strconv"

	"github.com/nekgo/nekhttp/internal/headers"
)

// Request is an HTTP/1.1 request parsed incrementally from raw bytes.
// Fields are populated as the parser advances and must be treated as
// read-only once the parser reaches a terminal state.
type Request struct {
	Method         string
	Path           string
	OriginalTarget string
	Proto          string
	ProtoVersion   string
	Headers        headers.Headers
	Host           string
	Body           []byte

	state    parserState
	method   []byte
	path     []byte
	target   []byte
	proto    []byte
	version  []byte
	keyBuf   []byte
	valBuf   []byte
	bodyWant int
	err      error
}

type parserState uint8

const (
	stateMethod parserState = iota
	statePath
	stateQuery
	stateProtocol
	stateVersion
	stateHeaderKey
	stateHeaderValue
	stateCR
	stateCRLF
	stateCRLFCR
	stateBody
	stateDone
	stateInvalid
)

// ParseError describes input that drove the parser into its invalid state.
// The whole request is abandoned; no individual byte is rejected.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse request: " + e.Reason
}

// New returns a fresh parser. Use one per connection so no state leaks
// between requests.
func New() *Request {
	return &Request{
		Headers:  headers.NewHeaders(),
		bodyWant: -1,
	}
}

// Done reports whether the request has been fully parsed.
func (r *Request) Done() bool {
	return r.state == stateDone
}

// Invalid reports whether the parser hit malformed input. Terminal.
func (r *Request) Invalid() bool {
	return r.state == stateInvalid
}

// Parse consumes bytes from data and advances the state machine. It returns
// the number of bytes consumed; once a terminal state is reached remaining
// bytes are left unconsumed and ignored. Parse may be called repeatedly
// with successive chunks; all intermediate state is kept on the Request.
func (r *Request) Parse(data []byte) (int, error) {
	if r.state == stateInvalid {
		return 0, r.err
	}
	total := 0
	for _, b := range data {
		if r.state == stateDone || r.state == stateInvalid {
			break
		}
		r.consume(b)
		total++
	}
	if r.state == stateInvalid {
		return total, r.err
	}
	return total, nil
}

// consume advances the machine by exactly one byte.
func (r *Request) consume(b byte) {
	switch r.state {
	case stateMethod:
		if b == ' ' {
			r.Method = string(r.method)
			r.state = statePath
			return
		}
		r.method = append(r.method, b)
	case statePath:
		switch b {
		case ' ':
			r.finishTarget()
			r.state = stateProtocol
		case '?':
			r.target = append(r.target, b)
			r.state = stateQuery
		default:
			r.path = append(r.path, b)
			r.target = append(r.target, b)
		}
	case stateQuery:
		// Query bytes stay in the original target but are not parsed into
		// structured form and never reach Path.
		if b == ' ' {
			r.finishTarget()
			r.state = stateProtocol
			return
		}
		r.target = append(r.target, b)
	case stateProtocol:
		if b == '/' {
			r.Proto = string(r.proto)
			r.state = stateVersion
			return
		}
		r.proto = append(r.proto, b)
	case stateVersion:
		if b == '\r' {
			r.ProtoVersion = string(r.version)
			r.state = stateCR
			return
		}
		r.version = append(r.version, b)
	case stateHeaderKey:
		if b == ':' {
			r.state = stateHeaderValue
			return
		}
		r.keyBuf = append(r.keyBuf, lower(b))
	case stateHeaderValue:
		// A single leading space after the colon is skipped.
		if b == ' ' && len(r.valBuf) == 0 {
			return
		}
		if b == '\r' {
			r.Headers.Set(string(r.keyBuf), string(r.valBuf))
			r.keyBuf = r.keyBuf[:0]
			r.valBuf = r.valBuf[:0]
			r.state = stateCR
			return
		}
		r.valBuf = append(r.valBuf, b)
	case stateCR:
		if b == '\n' {
			r.state = stateCRLF
			return
		}
		r.fail("expected LF after CR")
	case stateCRLF:
		if b == '\r' {
			r.state = stateCRLFCR
			return
		}
		r.keyBuf = append(r.keyBuf, lower(b))
		r.state = stateHeaderKey
	case stateCRLFCR:
		if b == '\n' {
			r.endHeaders()
			return
		}
		r.fail("expected LF terminating header block")
	case stateBody:
		r.Body = append(r.Body, b)
		if len(r.Body) == r.bodyWant {
			r.finish()
		}
	}
}

// endHeaders decides body framing after the blank line. A body is read only
// when a valid positive Content-Length was declared; otherwise the request
// is complete here (no unbounded accumulation).
func (r *Request) endHeaders() {
	cl := r.Headers.Get("Content-Length")
	if cl == "" {
		r.finish()
		return
	}
	// Atoi rejects non-digits and overflow; signs are not valid here.
	want, err := strconv.Atoi(cl)
	if err != nil || want < 0 || cl[0] == '+' {
		r.fail("invalid Content-Length")
		return
	}
	if want == 0 {
		r.finish()
		return
	}
	r.bodyWant = want
	r.state = stateBody
}

// finish moves to the done state and derives the hostname from the Host
// header, stripping any trailing :port. A Host with no port (including a
// bracketed IPv6 literal) is kept as-is.
func (r *Request) finish() {
	host := r.Headers.Get("Host")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	r.Host = host
	r.state = stateDone
}

func (r *Request) finishTarget() {
	r.Path = string(r.path)
	r.OriginalTarget = string(r.target)
}

func (r *Request) fail(reason string) {
	r.state = stateInvalid
	r.err = &ParseError{Reason: reason}
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// RequestFromReader parses one request from reader incrementally, feeding
// each chunk to Parse until the request is complete.
func RequestFromReader(reader io.Reader) (*Request, error) {
	r := New()
	buf := make([]byte, 256)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, perr := r.Parse(buf[:n]); perr != nil {
				return nil, perr
			}
			if r.Done() {
				return r, nil
			}
		}
		if err == io.EOF {
			if r.Done() {
				return r, nil
			}
			return nil, errors.New("incomplete request")
		}
		if err != nil {
			return nil, err
		}
	}
}
