package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fileconv/internal/services"
)

var errNotLoggedIn = errors.New("not logged in; run `fileconv login` first")

// formatError renders err for the terminal, preferring the user-facing
// message of classified failures.
func formatError(err error) string {
	if err == nil {
		return ""
	}
	msg := services.Message(err)
	if errors.Is(err, services.ErrAuthorization) {
		return msg + " (session ended; run `fileconv login` again)"
	}
	return msg
}

// readSecret returns the flag value, then FILECONV_PASSWORD, then the first
// line of in.
func readSecret(flagValue string, in io.Reader, out io.Writer, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if value, ok := os.LookupEnv("FILECONV_PASSWORD"); ok && value != "" {
		return value, nil
	}
	if prompt != "" {
		fmt.Fprint(out, prompt)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
