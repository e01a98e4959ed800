package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/lachiem1/ioukeeper/internal/auth"
	"github.com/lachiem1/ioukeeper/internal/iouapi"
	"github.com/lachiem1/ioukeeper/internal/storage"
	"github.com/lachiem1/ioukeeper/internal/syncer"
)

// app holds the resources shared by the TUI and the CLI commands.
type app struct {
	db        *sql.DB
	client    *iouapi.Client
	debts     *storage.DebtsRepo
	prefs     *storage.AppConfigRepo
	syncState *storage.SyncStateRepo
}

// openApp opens the local cache and builds an API client with whatever token
// is stored. A missing token is not an error; requests go out unauthenticated.
func openApp(ctx context.Context) (*app, error) {
	db, dbCfg, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	logger.Debug("local cache opened", zap.String("mode", string(dbCfg.Mode)), zap.String("path", dbCfg.Path))

	token, err := auth.LoadToken()
	switch {
	case errors.Is(err, auth.ErrNoToken):
		token = ""
	case err != nil:
		logger.Warn("load api token", zap.Error(err))
		token = ""
	}

	return &app{
		db:        db,
		client:    iouapi.New(token, cfg.API.BaseURL, cfg.API.Timeout),
		debts:     storage.NewDebtsRepo(db),
		prefs:     storage.NewAppConfigRepo(db),
		syncState: storage.NewSyncStateRepo(db),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// requireSession returns the signed-in user or an error telling the user how
// to sign in.
func (a *app) requireSession(ctx context.Context) (storage.Session, error) {
	session, ok, err := a.prefs.LoadSession(ctx)
	if err != nil {
		return storage.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return storage.Session{}, errors.New("not signed in; run 'iou auth login'")
	}
	return session, nil
}

// account signs the user in with Google and keeps the token, the session row
// and the API client in step.
type account struct {
	app    *app
	google *auth.GoogleSignIn
	open   func(url string) error
}

func newAccount(a *app, open func(url string) error) *account {
	return &account{
		app:    a,
		google: auth.NewGoogleSignIn(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.ListenAddr),
		open:   open,
	}
}

func (acc *account) SignIn(ctx context.Context) (storage.Session, error) {
	idToken, err := acc.google.SignIn(ctx, acc.open)
	if err != nil {
		return storage.Session{}, err
	}

	identity, err := auth.ParseIdentity(idToken)
	if err != nil {
		logger.Warn("read id token claims", zap.Error(err))
	}

	resp, err := acc.app.client.ExchangeGoogleToken(ctx, idToken)
	if err != nil {
		return storage.Session{}, fmt.Errorf("exchange google token: %w", err)
	}
	if err := auth.SaveToken(resp.Token); err != nil {
		return storage.Session{}, err
	}
	acc.app.client.SetToken(resp.Token)

	session := storage.Session{UserID: resp.UserID, Name: strings.TrimSpace(resp.Name)}
	if session.Name == "" {
		session.Name = identity.Label()
	}
	if err := acc.app.prefs.SaveSession(ctx, session); err != nil {
		return storage.Session{}, fmt.Errorf("save session: %w", err)
	}
	logger.Info("signed in", zap.Int64("user_id", session.UserID))
	return session, nil
}

func (acc *account) SignOut(ctx context.Context) error {
	if err := auth.RemoveToken(); err != nil {
		return err
	}
	acc.app.client.SetToken("")

	session, ok, err := acc.app.prefs.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if ok {
		if err := acc.app.purgeUser(ctx, session.UserID); err != nil {
			return err
		}
	}
	if err := acc.app.prefs.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	logger.Info("signed out")
	return nil
}

// purgeUser drops the cached lists of userID and forgets their sync state.
func (a *app) purgeUser(ctx context.Context, userID int64) error {
	if err := a.debts.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return a.syncState.Delete(ctx, syncer.DebtsCollection(userID))
}

// openBrowser opens url in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
