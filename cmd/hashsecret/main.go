// Command hashsecret prints an argon2id hash suitable for ADMIN_SECRET.
//
// The secret is read from the first argument or, when absent, from the first
// line of standard input.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Tyrowin/roomchat/internal/auth"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "hashsecret:", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	secret, err := readSecret(args, in)
	if err != nil {
		return err
	}

	hash, err := auth.HashSecret(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func readSecret(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return requireSecret(args[0])
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return requireSecret(line)
}

func requireSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	return secret, nil
}
