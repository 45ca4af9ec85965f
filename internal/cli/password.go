package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	PasswordEnvVar = "OVIRT_PASSWORD"
	PasswordPrompt = "Please enter your password: "
)

var stdin io.Reader = os.Stdin

var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassword reads a line from the terminal without echo. When stdin is
// not a terminal the first line of input is used as is.
var readPassword = func() ([]byte, error) {
	if !stdinIsTerminal() {
		return readLine(stdin)
	}
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func readLine(in io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// getPassword prefers OVIRT_PASSWORD and falls back to a single prompt.
func getPassword(out io.Writer) (string, error) {
	if password := os.Getenv(PasswordEnvVar); password != "" {
		return password, nil
	}

	fmt.Fprint(out, PasswordPrompt)
	password, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(password), nil
}
