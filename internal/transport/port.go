package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Port is a byte stream to a device.
//
// ReadUntil returns everything read up to and including marker. When the
// timeout elapses first it returns the partial data and a nil error; the
// caller decides whether a missing marker is a failure.
type Port interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	Write(data []byte) error
	ReadUntil(marker []byte, timeout time.Duration) ([]byte, error)
}

// NetPort is a Port over TCP, for controllers exposed through a
// serial-to-network bridge.
type NetPort struct {
	address     string
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewNetPort creates a closed port for address ("host:port").
func NewNetPort(address string, dialTimeout time.Duration) *NetPort {
	return &NetPort{address: address, dialTimeout: dialTimeout}
}

// Open dials the bridge. Opening an open port is a no-op.
func (p *NetPort) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: p.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", p.address, err)
	}
	p.conn = conn
	p.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the connection. Closing a closed port is a no-op.
func (p *NetPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.reader = nil
	return err
}

func (p *NetPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

func (p *NetPort) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return ErrNotOpen
	}
	_, err := p.conn.Write(data)
	return err
}

func (p *NetPort) ReadUntil(marker []byte, timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil, ErrNotOpen
	}
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	var buf []byte
	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return buf, nil
			}
			return buf, err
		}
		buf = append(buf, b)
		if bytes.HasSuffix(buf, marker) {
			return buf, nil
		}
	}
}
