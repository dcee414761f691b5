package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamSmooth     StreamMode = "smooth"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

func parseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet:
		return m, nil
	case "":
		return StreamInstant, nil
	}
	return "", fmt.Errorf("unknown stream mode %q (instant, smooth, typewriter, quiet)", s)
}

// StreamWriter prints reply text as it arrives. Smooth mode batches writes
// and flushes them on size or age; quiet mode prints only on Flush.
type StreamWriter struct {
	mode StreamMode
	out  *bufio.Writer

	mu            sync.Mutex
	batch         strings.Builder
	lastFlush     time.Time
	flushInterval time.Duration
	batchWords    int
	all           strings.Builder
}

func NewStreamWriter(w io.Writer, mode StreamMode) *StreamWriter {
	return &StreamWriter{
		mode:          mode,
		out:           bufio.NewWriterSize(w, 4096),
		lastFlush:     time.Now(),
		flushInterval: 50 * time.Millisecond,
		batchWords:    5,
	}
}

func (w *StreamWriter) Write(text string) {
	if text == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.all.WriteString(text)

	switch w.mode {
	case StreamQuiet:
	case StreamSmooth:
		w.batch.WriteString(text)
		words := strings.Count(w.batch.String(), " ") + 1
		if words >= w.batchWords || time.Since(w.lastFlush) >= w.flushInterval {
			w.flushBatch()
		}
	case StreamTypewriter:
		for _, r := range text {
			_, _ = w.out.WriteRune(r)
			_ = w.out.Flush()
		}
	default:
		_, _ = w.out.WriteString(text)
		_ = w.out.Flush()
	}
}

// Flush writes anything still held back and returns the full text written
// so far.
func (w *StreamWriter) Flush() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.mode {
	case StreamQuiet:
		_, _ = w.out.WriteString(w.all.String())
	case StreamSmooth:
		w.flushBatch()
	}
	_ = w.out.Flush()
	return w.all.String()
}

func (w *StreamWriter) flushBatch() {
	if w.batch.Len() == 0 {
		return
	}
	_, _ = w.out.WriteString(w.batch.String())
	_ = w.out.Flush()
	w.batch.Reset()
	w.lastFlush = time.Now()
}
