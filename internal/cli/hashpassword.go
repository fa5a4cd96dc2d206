package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"invitecal/internal/auth"
	"invitecal/internal/config"
)

func newHashPasswordCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an admin password (argon2id) and print the config snippet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			prompt := cmd.ErrOrStderr()

			if username == "" {
				fmt.Fprint(prompt, "Enter username: ")
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("read username: %w", err)
				}
				username = line
			}
			if username == "" {
				return errors.New("username cannot be empty")
			}

			password, err := readSecret(cmd, in, "Enter password:   ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			confirm, err := readSecret(cmd, in, "Confirm password: ")
			if err != nil {
				return fmt.Errorf("read password confirmation: %w", err)
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			snippet, err := yaml.Marshal(map[string]config.AdminConfig{
				"admin": {Username: username, PasswordHash: hash},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(prompt, "Add this to your config file:")
			_, err = cmd.OutOrStdout().Write(snippet)
			return err
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username (prompted if empty)")
	return cmd
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret masks input when stdin is a terminal and reads a plain line
// otherwise (pipes, tests).
func readSecret(cmd *cobra.Command, in *bufio.Reader, prompt string) (string, error) {
	out := cmd.ErrOrStderr()
	fmt.Fprint(out, prompt)

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return readLine(in)
	}
	return readPasswordWithMask(int(f.Fd()), in, out)
}

// readPasswordWithMask echoes an asterisk per character.
func readPasswordWithMask(fd int, in *bufio.Reader, out io.Writer) (string, error) {
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// Fallback to hidden input.
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		return string(password), err
	}
	defer term.Restore(fd, oldState)

	var password []rune
	for {
		char, _, err := in.ReadRune()
		if err != nil {
			fmt.Fprint(out, "\r\n")
			return string(password), err
		}

		switch char {
		case '\n', '\r':
			fmt.Fprint(out, "\r\n")
			return string(password), nil
		case 127, 8: // backspace
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Fprint(out, "\b \b")
			}
		case 3: // ctrl+c
			fmt.Fprint(out, "\r\n")
			return "", errors.New("interrupted")
		default:
			if char >= 32 {
				password = append(password, char)
				fmt.Fprint(out, "*")
			}
		}
	}
}
