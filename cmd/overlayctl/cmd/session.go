package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	goOverlay "github.com/MrEthical07/goOverlay"
)

func newLoginCmd(a *app) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in through the member directory",
		Long: `Signs in and stores the session locally. A suspended account is refused
even when the directory accepts the password.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(a.stdin, cmd.ErrOrStderr(), passwordStdin)
			if err != nil {
				return err
			}

			sess, err := a.engine.Login(a.context(cmd), args[0], pw)
			if err != nil {
				if msg, ok := goOverlay.SuspensionMessage(err); ok {
					return errors.New(msg)
				}
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd, sess)
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without prompting")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.Logout(a.context(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Restore the stored session and show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.engine.RestoreSession(a.context(cmd))
			if err != nil {
				if errors.Is(err, goOverlay.ErrSessionExpired) {
					fmt.Fprintln(cmd.OutOrStdout(), "Session expired, sign in again.")
					return nil
				}
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd, sess)
			}
			if !sess.Authenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}
}

func printSession(w io.Writer, sess goOverlay.Session) {
	name := sess.DisplayName
	if name == "" {
		name = sess.Email
	}
	fmt.Fprintf(w, "Signed in as %s (%s)", name, sess.UserID)
	if sess.Role != "" {
		fmt.Fprintf(w, ", role %s", sess.Role)
	}
	fmt.Fprintln(w, ".")
	if sess.Streak > 0 {
		fmt.Fprintf(w, "Login streak: %s.\n", plural(sess.Streak, "day"))
	}
}

// readPassword prompts without echo on a terminal and otherwise reads one
// line from in.
func readPassword(in io.Reader, prompt io.Writer, noPrompt bool) (string, error) {
	if f, ok := in.(*os.File); ok && !noPrompt && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
