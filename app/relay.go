package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/llm"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/models"
)

// TranscriptDelimiter separates the header record from the generated text.
const TranscriptDelimiter = "\n---\n"

// ErrClientGone means the response could no longer be written.
var ErrClientGone = errors.New("client connection lost")

// latchWriter stops writing after the first failure.
type latchWriter struct {
	w   io.Writer
	err error
}

func (l *latchWriter) Write(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	n, err := l.w.Write(p)
	if err != nil {
		l.err = err
	}
	return n, err
}

func (l *latchWriter) flush() {
	if l.err != nil {
		return
	}
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

func encodeTranscriptHeader(transcript string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(models.TranscriptHeader{OriginalTranscript: transcript}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RelayStream writes the transcript header and then every fragment of stream
// to w, flushing after each write. It returns the concatenated fragments.
//
// On failure the partial text is returned with the error. A write failure or a
// cancelled ctx yields an error wrapping ErrClientGone.
func RelayStream(ctx context.Context, w io.Writer, transcript string, stream llm.FragmentStream) (string, error) {
	header, err := encodeTranscriptHeader(transcript)
	if err != nil {
		return "", fmt.Errorf("encode transcript header: %w", err)
	}

	lw := &latchWriter{w: w}
	if _, err := lw.Write(append(header, TranscriptDelimiter...)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	lw.flush()

	var text strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return text.String(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return text.String(), fmt.Errorf("%w: %v", ErrClientGone, ctx.Err())
			}
			return text.String(), fmt.Errorf("generation stream: %w", err)
		}

		text.WriteString(fragment)
		if _, err := io.WriteString(lw, fragment); err != nil {
			return text.String(), fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		lw.flush()

		if ctx.Err() != nil {
			return text.String(), fmt.Errorf("%w: %v", ErrClientGone, ctx.Err())
		}
	}
}
