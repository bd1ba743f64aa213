package response

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nekgo/nekhttp/internal/headers"
	"github.com/nekgo/nekhttp/internal/request"
)

// StatusCode is an HTTP response status code.
type StatusCode int

const (
	StatusOK         StatusCode = 200
	StatusBadRequest StatusCode = 400
	StatusNotFound   StatusCode = 404
)

// StatusTable maps status codes to their default reason phrases. It is
// constructed explicitly and passed into each Writer; there is no
// process-wide table.
type StatusTable map[StatusCode]string

// DefaultStatusTable returns the reason phrases for the codes this server
// emits by default.
func DefaultStatusTable() StatusTable {
	return StatusTable{
		StatusOK:         "OK",
		StatusBadRequest: "Bad Request",
		StatusNotFound:   "Not Found",
	}
}

// ErrAlreadySent is returned when Send is called a second time. Send is
// terminal; repeating it would corrupt the wire.
var ErrAlreadySent = errors.New("response already sent")

// Writer assembles one HTTP response for a parsed request and writes it to
// the connection in a single Send.
type Writer struct {
	req        *request.Request
	out        io.Writer
	table      StatusTable
	hdrs       headers.Headers
	status     StatusCode
	statusText string
	sent       bool
}

// NewWriter binds a Writer to the request that produced it (source of the
// status-line protocol and version) and the connection to write to.
func NewWriter(req *request.Request, out io.Writer, table StatusTable) *Writer {
	return &Writer{
		req:    req,
		out:    out,
		table:  table,
		hdrs:   headers.NewHeaders(),
		status: StatusOK,
	}
}

// SetHeader stores a response header; names are case-insensitive.
func (w *Writer) SetHeader(name, value string) {
	w.hdrs.Set(name, value)
}

// GetHeader returns a previously set header value, or "".
func (w *Writer) GetHeader(name string) string {
	return w.hdrs.Get(name)
}

// SetStatus sets the response status code. Default is 200.
func (w *Writer) SetStatus(code StatusCode) {
	w.status = code
}

// SetStatusMessage overrides the reason phrase looked up from the status
// table.
func (w *Writer) SetStatusMessage(text string) {
	w.statusText = text
}

// Sent reports whether Send has already run.
func (w *Writer) Sent() bool {
	return w.sent
}

// Send serializes the status line, headers and body onto the connection.
// It is terminal: a second call fails with ErrAlreadySent and writes
// nothing. A non-empty body gets a computed Content-Length and, unless the
// caller set one, Content-Type: text/html.
func (w *Writer) Send(body []byte) error {
	if w.sent {
		return ErrAlreadySent
	}
	w.sent = true

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s/%s %d", w.req.Proto, w.req.ProtoVersion, int(w.status))
	if msg := w.reason(); msg != "" {
		buf.WriteByte(' ')
		buf.WriteString(msg)
	}
	buf.WriteString("\r\n")

	// Deterministic wire output: caller headers in sorted key order.
	keys := make([]string, 0, len(w.hdrs))
	for k := range w.hdrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, w.hdrs[k])
	}

	if len(body) > 0 {
		buf.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
		if !w.hdrs.Has("Content-Type") {
			buf.WriteString("Content-Type: text/html\r\n")
		}
	}
	buf.WriteString("Connection: Keep-Alive\r\n")
	buf.WriteString("\r\n")
	buf.Write(body)

	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return err
	}
	return nil
}

func (w *Writer) reason() string {
	if w.statusText != "" {
		return w.statusText
	}
	return w.table[w.status]
}
