package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/beatporter/internal/server"
	"github.com/desertthunder/beatporter/internal/services"
	"github.com/desertthunder/beatporter/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// Auth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect uri, opens the browser for the user and saves
// the exchanged token to the config file.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	auth, err := services.NewAuthenticator(creds)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	token, err := r.doOAuth(ctx, creds.RedirectURI, auth, auth.AuthURL, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlain("\n✓ Authorization successful\n")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: beatporter sync all\n")
	return nil
}

// doOAuth serves the callback on the redirect uri's address until the code arrives.
func (r *Runner) doOAuth(
	ctx context.Context, redirectURI string, ex server.Exchanger,
	authURL func(string, ...oauth2.AuthCodeOption) string, openBrowser bool,
) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	path, err := server.CallbackPath(redirectURI)
	if err != nil {
		return nil, err
	}
	addr, err := callbackAddr(redirectURI, r.config.Server)
	if err != nil {
		return nil, err
	}

	handler := server.NewOAuthHandler(ex, state, path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on %s: %v", shared.ErrServiceUnavailable, addr, err)
	}
	r.logger.Infof("starting OAuth server at %v", ln.Addr())

	link := authURL(state)
	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", link)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	return server.Await(ctx, ln, router, handler)
}

// callbackAddr is the host and port of the redirect uri, falling back to [server] for
// the parts it leaves out.
func callbackAddr(redirectURI string, cfg shared.ServerConfig) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	host, port := u.Hostname(), u.Port()
	if host == "" {
		host = cfg.Host
	}
	if port == "" {
		port = fmt.Sprint(cfg.Port)
	}
	return net.JoinHostPort(host, port), nil
}
