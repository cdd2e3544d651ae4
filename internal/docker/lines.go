package docker

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/stdcopy"

	"dockwatch/internal/stream"
)

// SplitLines turns a text chunk stream into a line stream. Lines are
// emitted without their trailing newline; a partial line left when the
// source ends is discarded.
func SplitLines(src *stream.Stream[string]) *stream.Stream[string] {
	var pending string
	return stream.Map(src, 0, func(chunk string) ([]string, error) {
		pending += chunk
		var lines []string
		for {
			i := strings.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			lines = append(lines, pending[:i])
			pending = pending[i+1:]
		}
		return lines, nil
	})
}

// isMultiplexed reports whether a log response uses the stdout/stderr
// frame encoding. Older daemons do not set the content type, in which case
// the container's TTY setting decides.
func isMultiplexed(head ResponseHead, tty bool) bool {
	switch head.Header.Get("Content-Type") {
	case types.MediaTypeMultiplexedStream:
		return true
	case types.MediaTypeRawStream:
		return false
	default:
		return !tty
	}
}

type sendWriter struct {
	out *stream.Stream[[]byte]
}

func (w sendWriter) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	if !w.out.Send(chunk) {
		return 0, errStreamStopped
	}
	return len(p), nil
}

// Demultiplex strips the 8-byte frame headers of a multiplexed log stream,
// interleaving stdout and stderr payloads in wire order.
func Demultiplex(src *stream.Stream[[]byte]) *stream.Stream[[]byte] {
	out := stream.New[[]byte](0)
	pr, pw := io.Pipe()

	go func() {
		<-out.Done()
		src.Stop()
		_ = pr.CloseWithError(errStreamStopped)
	}()

	go func() {
		for chunk := range src.C() {
			if _, err := pw.Write(chunk); err != nil {
				src.Stop()
				break
			}
		}
		_ = pw.CloseWithError(src.Err())
	}()

	go func() {
		w := sendWriter{out: out}
		_, err := stdcopy.StdCopy(w, w, pr)
		_ = pr.CloseWithError(errStreamStopped)

		switch {
		case errors.Is(err, errStreamStopped):
			out.Finish(nil)
		case src.Finished() && src.Err() != nil:
			out.Finish(src.Err())
		case err != nil:
			out.Finish(fmt.Errorf("%w: demultiplex log stream: %v", ErrDecode, err))
		default:
			out.Finish(nil)
		}
	}()

	return out
}
