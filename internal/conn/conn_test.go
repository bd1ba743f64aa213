package conn

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Accept_Requires_Listener(t *testing.T) {
	c := New(0)
	err := c.Accept()
	require.ErrorIs(t, err, ErrNotListening)
}

func Test_Receive_And_Send_Require_Peer(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Listen())
	defer c.Close()

	_, err := c.Receive(make([]byte, 8))
	assert.ErrorIs(t, err, ErrNotAccepted)
	assert.ErrorIs(t, c.Send([]byte("x")), ErrNotAccepted)
}

func Test_Listen_On_Taken_Port_Fails(t *testing.T) {
	first := New(0)
	require.NoError(t, first.Listen())
	defer first.Close()

	port := first.Addr().(*net.TCPAddr).Port
	second := New(port)
	err := second.Listen()
	require.Error(t, err)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "listen", opErr.Op)
}

func Test_Roundtrip(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Listen())
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		peer, err := net.Dial("tcp", c.Addr().String())
		if err != nil {
			return
		}
		defer peer.Close()
		_, _ = peer.Write([]byte("ping"))
		buf := make([]byte, 4)
		_, _ = io.ReadFull(peer, buf)
	}()

	require.NoError(t, c.Accept())
	buf := make([]byte, 8)
	n, err := c.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
	require.NoError(t, c.Send([]byte("pong")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not finish")
	}
}

func Test_Receive_Reports_EOF_On_Peer_Close(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Listen())
	defer c.Close()

	go func() {
		peer, err := net.Dial("tcp", c.Addr().String())
		if err != nil {
			return
		}
		peer.Close()
	}()

	require.NoError(t, c.Accept())
	_, err := c.Receive(make([]byte, 8))
	assert.Equal(t, io.EOF, err)
}

func Test_Close_Unblocks_Accept(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Listen())

	done := make(chan error, 1)
	go func() { done <- c.Accept() }()
	time.Sleep(50 * time.Millisecond)
	c.Close()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("accept did not unblock")
	}
}

func Test_Close_Is_Idempotent(t *testing.T) {
	c := New(0)
	require.NoError(t, c.Listen())
	c.Close()
	c.Close()
	assert.Nil(t, c.Addr())
}
