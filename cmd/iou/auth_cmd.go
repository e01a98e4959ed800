package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/lachiem1/ioukeeper/internal/auth"
	"github.com/lachiem1/ioukeeper/internal/storage"
)

var (
	authSetUserID int64
	authSetName   string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage sign-in and the stored API token",
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an API token read from the terminal",
	Long: `Reads an IOU Keeper API token without echo and stores it in the system
credential store. Pass --user-id to record which account the token belongs to.`,
	Args: cobra.NoArgs,
	RunE: runAuthSet,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with Google",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API token, session and cached debts",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in and whether the backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	authSetCmd.Flags().Int64Var(&authSetUserID, "user-id", 0, "Backend user id the token belongs to")
	authSetCmd.Flags().StringVar(&authSetName, "name", "", "Display name for the signed-in user")
}

func runAuthSet(cmd *cobra.Command, _ []string) error {
	fmt.Fprint(cmd.OutOrStdout(), "Enter IOU Keeper API token: ")
	token, err := readSecret(cmd.InOrStdin())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())

	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	if err := auth.SaveToken(token); err != nil {
		return err
	}

	if authSetUserID != 0 {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.prefs.SaveSession(cmd.Context(), storage.Session{UserID: authSetUserID, Name: authSetName}); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API token saved to your system credential store.")
	return nil
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	open := func(url string) error {
		fmt.Fprintf(out, "Opening your browser to sign in. If it does not open, visit:\n\n  %s\n\n", url)
		if err := openBrowser(url); err != nil {
			logger.Warn("open browser", zap.Error(err))
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	session, err := newAccount(a, open).SignIn(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s (user %d).\n", session.Name, session.UserID)
	return nil
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := newAccount(a, openBrowser).SignOut(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	session, ok, err := a.prefs.LoadSession(cmd.Context())
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	switch {
	case ok && a.client.HasToken():
		fmt.Fprintf(out, "signed in:  %s (user %d)\n", session.Name, session.UserID)
	case a.client.HasToken():
		fmt.Fprintln(out, "signed in:  token stored, no user recorded")
	default:
		fmt.Fprintln(out, "signed in:  no")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout)
	defer cancel()
	if err := a.client.Ping(ctx); err != nil {
		fmt.Fprintf(out, "backend:    %s unreachable (%v)\n", cfg.API.BaseURL, err)
		return nil
	}
	fmt.Fprintf(out, "backend:    %s ok\n", cfg.API.BaseURL)
	return nil
}

func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			value, err := term.ReadPassword(fd)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(string(value)), nil
		}
	}

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		if len(line) == 0 {
			return "", err
		}
	}
	return strings.TrimSpace(line), nil
}
