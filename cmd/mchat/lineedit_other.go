//go:build !linux

package main

import "io"

func (e *lineEditor) ReadLine(prompt string) (string, error) {
	_, _ = io.WriteString(e.out, prompt)
	line, err := e.readPlain()
	if err == nil {
		e.remember(line)
	}
	return line, err
}
