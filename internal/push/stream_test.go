package push_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vn.io.arda/notifeed/internal/push"
)

func drain(t *testing.T, ch push.Channel) []push.Frame {
	t.Helper()
	var frames []push.Frame
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-ch.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("channel did not close")
		}
	}
}

func TestStreamReportsReaderError(t *testing.T) {
	boom := errors.New("boom")
	s := push.Open(context.Background(), func(_ context.Context, emit func(push.Frame) bool) error {
		emit(push.Frame{Data: []byte("a")})
		return boom
	}, nil)

	frames := drain(t, s)

	if len(frames) != 1 || string(frames[0].Data) != "a" {
		t.Fatalf("unexpected frames %v", frames)
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("Err = %v, want boom", s.Err())
	}
}

func TestStreamPeerCloseIsErrClosed(t *testing.T) {
	s := push.Open(context.Background(), func(context.Context, func(push.Frame) bool) error {
		return nil
	}, nil)

	drain(t, s)

	if !errors.Is(s.Err(), push.ErrClosed) {
		t.Fatalf("Err = %v, want ErrClosed", s.Err())
	}
}

func TestStreamCloseWaitsForCleanup(t *testing.T) {
	cleaned := make(chan struct{})
	s := push.Open(context.Background(), func(ctx context.Context, _ func(push.Frame) bool) error {
		<-ctx.Done()
		return ctx.Err()
	}, func() { close(cleaned) })

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-cleaned:
	default:
		t.Fatal("Close returned before cleanup ran")
	}
	if s.Err() != nil {
		t.Fatalf("local close must not report an error, got %v", s.Err())
	}
	if _, ok := <-s.Frames(); ok {
		t.Fatal("frames must be closed")
	}
}

func TestStreamCloseUnblocksEmit(t *testing.T) {
	s := push.Open(context.Background(), func(_ context.Context, emit func(push.Frame) bool) error {
		for emit(push.Frame{Data: []byte("x")}) {
		}
		return nil
	}, nil)

	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a full frame buffer")
	}
}
