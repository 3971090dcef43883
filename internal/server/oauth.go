package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/beatporter/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultCallbackPath is served when the redirect uri has no path.
const DefaultCallbackPath = "/callback"

// Exchanger trades an authorization code for a token.
//
// Both [oauth2.Config] and the spotify auth Authenticator satisfy it.
type Exchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// OAuthResult is the outcome of one callback: a token or the reason there is none.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect of the authorization code flow. It accepts a single
// callback and reports it on [OAuthHandler.Result].
type OAuthHandler struct {
	exchanger Exchanger
	state     string
	path      string

	results chan OAuthResult
	deliver sync.Once

	mu     sync.Mutex
	served bool
}

// NewOAuthHandler creates a handler serving path that validates state and exchanges codes
// through ex. The state token should come from [shared.GenerateState].
func NewOAuthHandler(ex Exchanger, state, path string) *OAuthHandler {
	if path == "" {
		path = DefaultCallbackPath
	}
	return &OAuthHandler{
		exchanger: ex,
		state:     state,
		path:      path,
		results:   make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

// claim marks the callback as served and reports whether this request was first.
func (h *OAuthHandler) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.served {
		return false
	}
	h.served = true
	return true
}

func (h *OAuthHandler) reject(w http.ResponseWriter, status int, err error) {
	h.Send(OAuthResult{err: fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)})
	http.Error(w, "Spotify authorization failed: "+err.Error(), status)
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claim() {
		http.Error(w, "authorization already completed", http.StatusBadRequest)
		return
	}

	params := r.URL.Query()
	if params.Get("state") != h.state {
		h.reject(w, http.StatusBadRequest, fmt.Errorf("state mismatch"))
		return
	}

	code := params.Get("code")
	if code == "" {
		h.reject(w, http.StatusBadRequest, fmt.Errorf("no code returned: %s %s", params.Get("error"), params.Get("error_description")))
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.reject(w, http.StatusInternalServerError, fmt.Errorf("token exchange failed: %v", err))
		return
	}

	h.Send(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, connectedPage)
}

// Send delivers result unless one was already delivered, then closes the channel.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.deliver.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result yields exactly one [OAuthResult].
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const connectedPage = `<!doctype html>
<meta charset="utf-8">
<title>beatporter</title>
<body style="font-family: sans-serif; background: #141414; color: #eee; text-align: center; padding-top: 20vh">
<h1 style="color: #01ff95">Spotify connected</h1>
<p>beatporter can now edit your playlists. Return to the terminal.</p>
</body>
`
