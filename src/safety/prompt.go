package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm prompts the user to confirm a potentially destructive action.
// - If opts.DryRun is true, it returns false with no error (take no action).
// - If opts.Yes or opts.Force is true, it returns true without prompting.
// The caller decides what to do with the result.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes || opts.Force {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	line, err := readLine(in)
	if err != nil {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}

// ConfirmPhrase requires the user to type phrase exactly. Used for the
// teardown gate, where a stray "y" must not wipe two accounts.
// Force bypasses the gate; Yes alone does not.
func ConfirmPhrase(opts Options, in io.Reader, out io.Writer, question, phrase string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Force {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s\nType %q to continue: ", strings.TrimSpace(question), phrase)
	}
	line, err := readLine(in)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(line) == phrase, nil
}

func readLine(in io.Reader) (string, error) {
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}
