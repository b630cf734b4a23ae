package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter asks the user for input.
type prompter interface {
	Password(label string) ([]byte, error)
	Line(label string) (string, error)
}

type termPrompter struct {
	in  *os.File
	r   *bufio.Reader
	out io.Writer
}

func newTermPrompter(in *os.File, out io.Writer) *termPrompter {
	return &termPrompter{in: in, r: bufio.NewReader(in), out: out}
}

// Password reads without echo when stdin is a terminal, and a plain line
// otherwise so input can be piped.
func (p *termPrompter) Password(label string) ([]byte, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := p.Line(label)
		return []byte(line), err
	}
	fmt.Fprint(p.out, label)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func (p *termPrompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
