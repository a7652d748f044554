package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from the user. Passwords are masked when the
// input is a terminal and read as plain lines otherwise.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
	fd     int
	tty    bool
}

// NewPrompter creates a Prompter over in and out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{reader: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// Interactive reports whether input comes from a terminal
func (p *Prompter) Interactive() bool {
	return p.tty
}

// ReadLine reads one line without a prompt. io.EOF is returned at end of input.
func (p *Prompter) ReadLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Ask prompts until a non-empty answer is given
func (p *Prompter) Ask(label string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", label)
		line, err := p.ReadLine()
		if err != nil {
			return "", err
		}
		if answer := strings.TrimSpace(line); answer != "" {
			return answer, nil
		}
		fmt.Fprintf(p.out, "%s cannot be empty.\n", label)
	}
}

// Password prompts for a secret with masked input on terminals
func (p *Prompter) Password(label string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", label)

		var secret string
		if p.tty {
			b, err := term.ReadPassword(p.fd)
			fmt.Fprintln(p.out)
			if err != nil {
				return "", err
			}
			secret = string(b)
		} else {
			line, err := p.ReadLine()
			if err != nil {
				return "", err
			}
			secret = line
		}

		if secret != "" {
			return secret, nil
		}
		fmt.Fprintf(p.out, "%s cannot be empty.\n", label)
	}
}

// Confirm prompts for a yes/no confirmation, defaulting to no
func (p *Prompter) Confirm(message string) bool {
	for {
		fmt.Fprintf(p.out, "%s [y/N]: ", message)
		line, err := p.ReadLine()
		if err != nil {
			return false
		}

		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		default:
			fmt.Fprintln(p.out, "Please enter 'y' or 'n'.")
		}
	}
}
