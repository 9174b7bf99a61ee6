package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/keytrack/internal/server"
	"github.com/desertthunder/keytrack/internal/services"
	"github.com/desertthunder/keytrack/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	oauthSrv, err := r.oauthService()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, oauthSrv, "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := oauthSrv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configName())
	r.writePlain("You can now use: keytrack playlists\n")
	return nil
}

// AuthStatus reports the stored token and checks it against the API.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	token := creds.Token()

	r.writePlainHeader("Spotify authentication")
	if creds.ClientID == "" || creds.ClientSecret == "" {
		r.writePlain("Client credentials: ✗ missing from %s\n", r.configName())
		return nil
	}
	r.writePlain("Client credentials: ✓ configured\n")

	if token == nil {
		r.writePlain("Token: ✗ not authorized, run 'keytrack auth login'\n")
		return nil
	}

	if token.Expiry.IsZero() {
		r.writePlain("Token: ✓ stored\n")
	} else if token.Valid() {
		r.writePlain("Token: ✓ valid until %s\n", token.Expiry.Local().Format(time.RFC1123))
	} else {
		r.writePlain("Token: ⚠ expired %s, refreshed on next request\n", token.Expiry.Local().Format(time.RFC1123))
	}

	if err := r.requireProvider(); err != nil {
		return err
	}

	userID, err := r.provider.CurrentUserID(ctx)
	if err != nil {
		r.logger.Warn("auth check failed", "error", err)
		r.writePlain("API: ✗ %v\n", err)
		return nil
	}
	r.writePlain("API: ✓ authenticated as %s\n", userID)
	return nil
}

func (r *Runner) oauthService() (services.OAuthService, error) {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configName())
	}
	if err := r.requireProvider(); err != nil {
		return nil, err
	}

	oauthSrv, ok := r.provider.(services.OAuthService)
	if !ok {
		return nil, errNoOAuth
	}
	return oauthSrv, nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(oauthHandler)

	httpServer := server.New(r.config.Server.Addr(), router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// withReauth runs fn and, when the provider rejected the stored token, reauthorizes once and retries.
func (r *Runner) withReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	oauthSrv, ok := r.provider.(services.OAuthService)
	if !ok {
		return fmt.Errorf("%w: %v", err, errNoOAuth)
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...\n")

	token, reauthErr := r.doOAuth(ctx, oauthSrv, "reauthorization")
	if reauthErr != nil {
		return fmt.Errorf("reauthorization failed: %w", reauthErr)
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := oauthSrv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...\n")
	return fn()
}
