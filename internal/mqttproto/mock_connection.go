package mqttproto

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

type mockAddr struct {
	addr string
}

func (a mockAddr) Network() string { return "tcp" }
func (a mockAddr) String() string  { return a.addr }

// MockConnection is an in-memory net.Conn test double: writes made with Write() can be
// observed by reading the "remote" side with RemoteRead(), and bytes pushed in with
// RemoteWrite() are what Read() returns - as if a broker were on the other end.
type MockConnection struct {
	mutex       sync.Mutex
	toLocal     bytes.Buffer // bytes the "remote" side has written - what Read() returns
	toRemote    bytes.Buffer // bytes the local side has written - what RemoteRead() returns
	closed      bool
	readReady   chan struct{}
	readDead    time.Time
	hasDeadline bool
}

// NewMockConnection creates a new, open MockConnection
func NewMockConnection() *MockConnection {
	return &MockConnection{readReady: make(chan struct{}, 1)}
}

func (c *MockConnection) signalReady() {
	select {
	case c.readReady <- struct{}{}:
	default:
	}
}

// Read implements net.Conn. It blocks until data is available, the connection is
// closed (returning io.EOF), or the read deadline expires.
func (c *MockConnection) Read(b []byte) (int, error) {
	for {
		c.mutex.Lock()
		if c.toLocal.Len() > 0 {
			n, _ := c.toLocal.Read(b)
			c.mutex.Unlock()
			return n, nil
		}
		if c.closed {
			c.mutex.Unlock()
			return 0, io.EOF
		}
		deadline := c.readDead
		hasDeadline := c.hasDeadline
		c.mutex.Unlock()

		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, &timeoutError{}
			}
			select {
			case <-c.readReady:
				continue
			case <-time.After(remaining):
				return 0, &timeoutError{}
			}
		}
		<-c.readReady
	}
}

// Write implements net.Conn - what is written here can be observed via RemoteRead.
func (c *MockConnection) Write(b []byte) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return 0, errClosed
	}
	return c.toRemote.Write(b)
}

// RemoteWrite simulates the broker sending bytes to the client.
func (c *MockConnection) RemoteWrite(b []byte) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return 0, errClosed
	}
	n, err := c.toLocal.Write(b)
	c.signalReady()
	return n, err
}

// RemoteRead simulates the broker reading bytes the client wrote.
func (c *MockConnection) RemoteRead(b []byte) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.toRemote.Len() == 0 {
		return 0, nil
	}
	return c.toRemote.Read(b)
}

// Remote returns an io.ByteReader-ish view over what was written locally, for tests that
// want to consume a whole CONNECT/PUBLISH off the "wire" byte by byte.
func (c *MockConnection) Remote() *bytes.Buffer {
	return &c.toRemote
}

// Close implements net.Conn. Blocked reads are released with io.EOF.
func (c *MockConnection) Close() error {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()
	c.signalReady()
	return nil
}

// LocalAddr implements net.Conn with a hardcoded address - this is a test double, not a
// real socket.
func (c *MockConnection) LocalAddr() net.Addr { return mockAddr{addr: "0.0.0.0"} }

// RemoteAddr implements net.Conn with a hardcoded address.
func (c *MockConnection) RemoteAddr() net.Addr { return mockAddr{addr: "0.0.0.0"} }

// SetDeadline implements net.Conn
func (c *MockConnection) SetDeadline(t time.Time) error {
	_ = c.SetReadDeadline(t)
	return nil
}

// SetReadDeadline implements net.Conn
func (c *MockConnection) SetReadDeadline(t time.Time) error {
	c.mutex.Lock()
	c.readDead = t
	c.hasDeadline = !t.IsZero()
	c.mutex.Unlock()
	c.signalReady()
	return nil
}

// SetWriteDeadline implements net.Conn - writes never block on this test double.
func (c *MockConnection) SetWriteDeadline(t time.Time) error { return nil }

var errClosed = errors.New("mock connection closed")

type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
