package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"golang.org/x/time/rate"
)

const (
	keysFetchTimeout    = 10 * time.Second
	keysRefreshInterval = time.Hour

	// keysRefreshWait bounds how long a token with an unknown key id waits for a refresh.
	keysRefreshWait = 2 * time.Second
)

// NewKeySet loads the signing keys of the token issuer and refreshes them in the background
// until ctx is done. An unknown key id triggers a refresh, at most once per throttle window.
// Lookups of known keys never wait for a refresh. An issuer that is down at startup is logged,
// not fatal.
func NewKeySet(ctx context.Context, logger *slog.Logger, url string, throttle time.Duration) (keyfunc.Keyfunc, error) {
	log := logger.With("component", "jwks", "url", url)

	remote, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: keysFetchTimeout},
		Ctx:                       ctx,
		HTTPExpectedStatus:        http.StatusOK,
		HTTPMethod:                http.MethodGet,
		HTTPTimeout:               keysFetchTimeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			log.WarnContext(ctx, "failed to refresh jwks", "error", err)
		},
		RefreshInterval: keysRefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jwks storage: %w", err)
	}

	client, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{url: remote},
		RateLimitWaitMax:  keysRefreshWait,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(throttle), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jwks client: %w", err)
	}

	keys, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: client})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}

	return keys, nil
}
