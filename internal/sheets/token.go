package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/arcline/sheetlog/internal/recerr"
)

// refreshWindow is how close to expiry the access token may get before the
// next call exchanges the refresh token again.
const refreshWindow = 60 * time.Second

type tokenSource struct {
	oauth        *oauth2.Config
	refreshToken string

	mu      sync.Mutex
	current *oauth2.Token
}

func newTokenSource(cfg Config) *tokenSource {
	source := &tokenSource{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.TokenURL,
			},
		},
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
	}
	if access := strings.TrimSpace(cfg.AccessToken); access != "" {
		// Expiry unknown for a pre-supplied token; treat it as already
		// inside the refresh window so the first call exchanges anyway.
		source.current = &oauth2.Token{AccessToken: access}
	}
	return source
}

// bearer returns a usable access token, exchanging the refresh token when
// the cached one is missing, expiring within refreshWindow, or of unknown
// expiry. A failed exchange aborts the pending store operation.
func (t *tokenSource) bearer(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && t.current.AccessToken != "" &&
		!t.current.Expiry.IsZero() && time.Until(t.current.Expiry) > refreshWindow {
		return t.current.AccessToken, nil
	}

	token, err := t.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: t.refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", recerr.ErrAuthRefreshFailed, err)
	}
	t.current = token
	return token.AccessToken, nil
}
