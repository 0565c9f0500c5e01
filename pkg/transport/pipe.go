package transport

import (
	"errors"
	"io"
)

type pipeEnd struct {
	*io.PipeReader
	*io.PipeWriter
}

func (e pipeEnd) Close() error {
	return errors.Join(e.PipeReader.Close(), e.PipeWriter.Close())
}

// Pipe returns two connected in-memory ports: what is written to one can be
// read from the other.
func Pipe() (*Port, *Port) {
	aIn, bOut := io.Pipe()
	bIn, aOut := io.Pipe()
	return New(pipeEnd{aIn, aOut}), New(pipeEnd{bIn, bOut})
}
