package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tourdesk/internal/session"
)

// CredentialOptions holds flags for login and signup.
type CredentialOptions struct {
	*RootOptions
	Email    string
	Password string
}

// SessionInfo is the JSON payload of login, signup and whoami.
type SessionInfo struct {
	SignedIn  bool          `json:"signed_in"`
	User      *session.User `json:"user,omitempty"`
	ExpiresAt int64         `json:"expires_at,omitempty"`
}

type signInFunc func(ctx context.Context, b *backend, email, password string) (session.Session, error)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return credentialCommand(rootOpts, "login", "Sign in and keep the session",
		`Sign in with an email and password. The session is kept in the
configured session store (TOURDESK_SESSION_STORE) until logout or expiry.

When --password is omitted the password is read from the first line of
standard input.

Example:
  tourdesk login --email agent@tourdesk.test --password agent123`,
		func(ctx context.Context, b *backend, email, password string) (session.Session, error) {
			return b.SignIn(ctx, email, password)
		})
}

// NewSignupCommand creates the signup command.
func NewSignupCommand(rootOpts *RootOptions) *cobra.Command {
	return credentialCommand(rootOpts, "signup", "Register an account and sign in",
		`Register a new account and sign in with it. Passwords must be at least
six characters; an email can be registered once.

Example:
  tourdesk signup --email new@tourdesk.test --password s3cret!`,
		func(ctx context.Context, b *backend, email, password string) (session.Session, error) {
			return b.SignUp(ctx, email, password)
		})
}

func credentialCommand(rootOpts *RootOptions, use, short, long string, fn signInFunc) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			password, err := opts.password(cmd)
			if err != nil {
				return out.Fail(use, err)
			}
			return opts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				s, err := fn(ctx, b, opts.Email, password)
				if err != nil {
					return out.Fail(use, err)
				}
				out.VerboseLog("session expires %s", s.Expiry().Format(time.RFC3339))
				user := s.User
				return out.Success(SessionInfo{SignedIn: true, User: &user, ExpiresAt: s.ExpiresAt}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "signed in as %s\n", describeUser(user))
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password (read from stdin when omitted)")

	return cmd
}

func (o *CredentialOptions) password(cmd *cobra.Command) (string, error) {
	if o.Password != "" {
		return o.Password, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil && err != io.EOF {
			return "", usageError("read password: %v", err)
		}
		return "", usageError("a password is required (--password or stdin)")
	}
	return line, nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Sign out and forget the kept session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				if err := b.SignOut(ctx); err != nil {
					return out.Fail("logout", err)
				}
				return out.Success(SessionInfo{SignedIn: false}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, "signed out")
					return err
				})
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the signed-in user",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			return rootOpts.withBackend(cmd, out, func(ctx context.Context, b *backend) error {
				u, err := b.CurrentUser(ctx)
				if err != nil {
					return out.Fail("whoami", err)
				}
				return out.Success(SessionInfo{SignedIn: u != nil, User: u}, func(w io.Writer) error {
					if u == nil {
						_, err := fmt.Fprintln(w, "not signed in")
						return err
					}
					_, err := fmt.Fprintln(w, describeUser(*u))
					return err
				})
			})
		},
	}
}

func describeUser(u session.User) string {
	s := u.Email
	if u.Name != "" {
		s = fmt.Sprintf("%s <%s>", u.Name, u.Email)
	}
	if u.Role != "" {
		s += fmt.Sprintf(" (%s)", u.Role)
	}
	return s
}
