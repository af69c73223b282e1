package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
)

// ErrInterrupted is returned by a LineSource when the operator presses
// Ctrl-C at an empty prompt.
var ErrInterrupted = errors.New("interrupted")

// LineSource yields one operator line at a time. ReadLine returns io.EOF
// when input ends. Close must unblock a pending ReadLine where possible.
type LineSource interface {
	ReadLine() (string, error)
	Close() error
}

// Readline is an interactive terminal source with history and line editing.
type Readline struct {
	rl *readline.Instance
}

// NewReadline opens the terminal. historyFile may be empty.
func NewReadline(prompt, historyFile string) (*Readline, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,

		Stdin:  readline.NewCancelableStdin(os.Stdin),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize readline: %w", err)
	}
	return &Readline{rl: rl}, nil
}

func (r *Readline) ReadLine() (string, error) {
	for {
		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return "", ErrInterrupted
			}
			// Ctrl-C with text on the line only clears it.
			continue
		}
		return line, err
	}
}

// Stdout returns a writer that redraws the prompt after output, for
// messages printed while the operator is typing.
func (r *Readline) Stdout() io.Writer { return r.rl.Stdout() }

func (r *Readline) Close() error { return r.rl.Close() }

// Scanner reads newline-separated commands from any reader, e.g. a pipe.
type Scanner struct {
	sc     *bufio.Scanner
	closer io.Closer
}

// NewScanner constructs a new Scanner over r.
func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{sc: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok && r != os.Stdin {
		s.closer = c
	}
	return s
}

func (s *Scanner) ReadLine() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *Scanner) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
