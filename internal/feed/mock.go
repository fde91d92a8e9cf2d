package feed

import (
	"bytes"
	"io"
	"sync"
)

// MockPort implements Porter for testing without receiver hardware.
type MockPort struct {
	mu     sync.Mutex
	reader io.Reader
	writes bytes.Buffer
	closed bool
}

// NewMockPort returns a port whose Read drains the given input.
func NewMockPort(input []byte) *MockPort {
	return &MockPort{reader: bytes.NewReader(input)}
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.EOF
	}
	return m.reader.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns everything sent to the port.
func (m *MockPort) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes.Bytes()
}
