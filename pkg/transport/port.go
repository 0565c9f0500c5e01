package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// maxBuffered bounds the receive buffer; the oldest bytes are dropped first.
const maxBuffered = 64 * 1024

var ErrClosed = errors.New("port closed")

// Port turns a blocking byte stream into the non-blocking, buffered byte
// source the packet reader polls. A pump goroutine moves incoming bytes into
// an internal buffer until the stream fails or the port is closed.
type Port struct {
	rwc io.ReadWriteCloser

	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New starts pumping rwc. The Port owns rwc from now on.
func New(rwc io.ReadWriteCloser) *Port {
	p := &Port{
		rwc:  rwc,
		done: make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *Port) pump() {
	defer close(p.done)

	chunk := make([]byte, 512)
	for {
		n, err := p.rwc.Read(chunk)
		p.mu.Lock()
		if n > 0 {
			if excess := p.buf.Len() + n - maxBuffered; excess > 0 {
				p.buf.Next(excess)
			}
			p.buf.Write(chunk[:n])
		}
		if err != nil {
			p.err = err
			if p.closed {
				p.err = ErrClosed
			}
		}
		p.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// Read copies buffered bytes into b without waiting. Once the buffer is
// drained and the underlying stream failed, the stream error is returned.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() == 0 {
		return 0, p.err
	}
	return p.buf.Read(b)
}

// Buffered returns the number of bytes available to Read.
func (p *Port) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Len()
}

// Write writes all of b to the underlying stream.
func (p *Port) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := p.rwc.Write(b[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Err returns the error that stopped the pump, nil while it is running.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once the pump stopped.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Close closes the underlying stream and waits for the pump to stop.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.closeErr = p.rwc.Close()
		<-p.done
	})
	return p.closeErr
}
