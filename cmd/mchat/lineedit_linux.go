//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// editState is the line being edited in raw mode.
type editState struct {
	out    io.Writer
	prompt string
	line   []byte
	cursor int

	history  []string
	histPos  int
	browsing bool
	draft    string
}

// ReadLine prints prompt and returns the next line without its newline.
// io.EOF means the user pressed ctrl+c, or ctrl+d on an empty line.
func (e *lineEditor) ReadLine(prompt string) (string, error) {
	f, ok := e.in.(*os.File)
	if !ok || !stdinIsTTY() {
		_, _ = io.WriteString(e.out, prompt)
		line, err := e.readPlain()
		if err == nil {
			e.remember(line)
		}
		return line, err
	}

	fd := int(f.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() { _ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState) }()

	st := &editState{out: e.out, prompt: prompt, history: e.history, histPos: len(e.history)}
	_, _ = io.WriteString(e.out, prompt)
	line, err := st.run(f)
	if err == nil {
		e.remember(line)
	}
	return line, err
}

func (s *editState) run(in io.Reader) (string, error) {
	var (
		buf    [16]byte
		esc    int
		escSeq strings.Builder
	)
	for {
		n, err := in.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			switch esc {
			case 1:
				esc = 0
				switch b {
				case '[':
					esc = 2
					escSeq.Reset()
				case 'b', 'B':
					s.wordLeft()
				case 'f', 'F':
					s.wordRight()
				case 127:
					s.deleteWordBack()
				}
				continue
			case 2:
				escSeq.WriteByte(b)
				if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
					s.csi(escSeq.String())
					esc = 0
				}
				continue
			}

			switch b {
			case 27:
				esc = 1
			case '\r', '\n':
				_, _ = io.WriteString(s.out, "\r\n")
				return string(s.line), nil
			case 3:
				_, _ = io.WriteString(s.out, "^C\r\n")
				return "", io.EOF
			case 4:
				if len(s.line) == 0 {
					_, _ = io.WriteString(s.out, "\r\n")
					return "", io.EOF
				}
			case 127, 8:
				if s.cursor > 0 {
					s.line = append(s.line[:s.cursor-1], s.line[s.cursor:]...)
					s.cursor--
					s.redraw()
				}
			case 1:
				s.cursor = 0
				s.redraw()
			case 5:
				s.cursor = len(s.line)
				s.redraw()
			case 11:
				s.line = s.line[:s.cursor]
				s.redraw()
			case 21:
				s.line = append(s.line[:0], s.line[s.cursor:]...)
				s.cursor = 0
				s.redraw()
			case 23:
				s.deleteWordBack()
			default:
				if b >= 32 {
					s.insert(b)
				}
			}
		}
	}
}

func (s *editState) redraw() {
	fmt.Fprintf(s.out, "\r%s%s\x1b[K", s.prompt, s.line)
	if s.cursor < len(s.line) {
		fmt.Fprintf(s.out, "\r%s%s", s.prompt, s.line[:s.cursor])
	}
}

func (s *editState) insert(b byte) {
	s.line = append(s.line, 0)
	copy(s.line[s.cursor+1:], s.line[s.cursor:])
	s.line[s.cursor] = b
	s.cursor++
	s.redraw()
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

func (s *editState) wordLeft() {
	for s.cursor > 0 && isBlank(s.line[s.cursor-1]) {
		s.cursor--
	}
	for s.cursor > 0 && !isBlank(s.line[s.cursor-1]) {
		s.cursor--
	}
	s.redraw()
}

func (s *editState) wordRight() {
	for s.cursor < len(s.line) && isBlank(s.line[s.cursor]) {
		s.cursor++
	}
	for s.cursor < len(s.line) && !isBlank(s.line[s.cursor]) {
		s.cursor++
	}
	s.redraw()
}

func (s *editState) deleteWordBack() {
	start := s.cursor
	for start > 0 && isBlank(s.line[start-1]) {
		start--
	}
	for start > 0 && !isBlank(s.line[start-1]) {
		start--
	}
	s.line = append(s.line[:start], s.line[s.cursor:]...)
	s.cursor = start
	s.redraw()
}

func (s *editState) deleteWordForward() {
	end := s.cursor
	for end < len(s.line) && isBlank(s.line[end]) {
		end++
	}
	for end < len(s.line) && !isBlank(s.line[end]) {
		end++
	}
	s.line = append(s.line[:s.cursor], s.line[end:]...)
	s.redraw()
}

func (s *editState) recall(line string) {
	s.line = append(s.line[:0], line...)
	s.cursor = len(s.line)
	s.redraw()
}

func (s *editState) csi(seq string) {
	switch seq {
	case "A":
		if len(s.history) == 0 {
			return
		}
		if !s.browsing {
			s.draft = string(s.line)
			s.browsing = true
			s.histPos = len(s.history)
		}
		if s.histPos > 0 {
			s.histPos--
			s.recall(s.history[s.histPos])
		}
	case "B":
		if !s.browsing {
			return
		}
		if s.histPos < len(s.history)-1 {
			s.histPos++
			s.recall(s.history[s.histPos])
			return
		}
		s.histPos = len(s.history)
		s.browsing = false
		s.recall(s.draft)
	case "D":
		if s.cursor > 0 {
			s.cursor--
			s.redraw()
		}
	case "C":
		if s.cursor < len(s.line) {
			s.cursor++
			s.redraw()
		}
	case "H":
		s.cursor = 0
		s.redraw()
	case "F":
		s.cursor = len(s.line)
		s.redraw()
	case "3~":
		if s.cursor < len(s.line) {
			s.line = append(s.line[:s.cursor], s.line[s.cursor+1:]...)
			s.redraw()
		}
	case "1;5D", "5D":
		s.wordLeft()
	case "1;5C", "5C":
		s.wordRight()
	case "3;5~":
		s.deleteWordForward()
	}
}
