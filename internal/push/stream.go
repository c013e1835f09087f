package push

import (
	"context"
	"sync"
)

const frameBuffer = 64

// ReadFunc pumps frames from an open connection until it ends or ctx is done.
// emit returns false once the stream is closing; the reader should return then.
type ReadFunc func(ctx context.Context, emit func(Frame) bool) error

// Stream is the Channel implementation shared by all transports. The reader
// goroutine is the only writer of the frames channel.
type Stream struct {
	frames chan Frame
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Open starts read in its own goroutine. cleanup runs after read returns and
// before Frames is closed.
func Open(parent context.Context, read ReadFunc, cleanup func()) *Stream {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		frames: make(chan Frame, frameBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	emit := func(f Frame) bool {
		select {
		case s.frames <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		err := read(ctx, emit)
		if cleanup != nil {
			cleanup()
		}

		switch {
		case ctx.Err() != nil:
			err = nil
		case err == nil:
			err = ErrClosed
		}

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		close(s.frames)
		close(s.done)
	}()

	return s
}

func (s *Stream) Frames() <-chan Frame { return s.frames }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}
