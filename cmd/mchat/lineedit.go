package main

import (
	"bufio"
	"io"
	"strings"
)

// lineEditor reads one line of input per call. On a Linux terminal it edits
// in raw mode with history; elsewhere it reads plain lines.
type lineEditor struct {
	in      io.Reader
	out     io.Writer
	reader  *bufio.Reader
	history []string
}

func newLineEditor(in io.Reader, out io.Writer) *lineEditor {
	return &lineEditor{in: in, out: out, reader: bufio.NewReader(in)}
}

func (e *lineEditor) readPlain() (string, error) {
	s, err := e.reader.ReadString('\n')
	if err == io.EOF && s != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func (e *lineEditor) remember(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
}

func trimTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
