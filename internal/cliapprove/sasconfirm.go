package cliapprove

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ConfirmSASAtTerminal is the operator-side half of spec.md P6: the
// controller displays the SAS it computed and asks the human to confirm
// it matches what they see on the device's own screen, reading the
// confirmation in raw mode so a stray keystroke can't be buffered past it.
func ConfirmSASAtTerminal(sas string) (bool, error) {
	fmt.Printf("Confirm this code matches the device's display: %s  [y/N] ", sasStyle.Render(sas))

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// Non-interactive stdin (piped input, CI): fall back to a plain
		// line read instead of raw mode.
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("cliapprove: read confirmation: %w", err)
		}
		return line == "y\n" || line == "Y\n", nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return false, fmt.Errorf("cliapprove: enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return false, fmt.Errorf("cliapprove: read confirmation byte: %w", err)
	}
	fmt.Println()
	return buf[0] == 'y' || buf[0] == 'Y', nil
}
