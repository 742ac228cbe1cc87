// Command hashpw prints the argon2id hash for an operator password, ready to
// paste into BACKOFFICE_AUTH_PASSWORD_HASH. The password comes from the first
// argument, or from stdin when no argument is given.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/shipbee/backoffice/pkg/config"
	"github.com/shipbee/backoffice/pkg/security"
)

func main() {
	var cfg config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parsing config: %v\n", err)
		os.Exit(1)
	}
	if err := run(os.Args[1:], os.Stdin, os.Stdout, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer, cfg config.PasswordConfig) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(string(raw), "\r\n")
	}
	if password == "" {
		return fmt.Errorf("usage: hashpw <password>, or pipe the password on stdin")
	}

	hash, err := security.HashPassword(password, cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
