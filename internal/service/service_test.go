package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MicahParks/jwkset"
	"github.com/stretchr/testify/require"
)

const testKeyID = "key-1"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return key
}

// toJWKS renders public keys by key id as a JWK Set document.
func toJWKS(t *testing.T, keys map[string]*rsa.PublicKey) json.RawMessage {
	t.Helper()

	ctx := context.Background()
	store := jwkset.NewMemoryStorage()

	for keyID, key := range keys {
		jwk, err := jwkset.NewJWKFromKey(key, jwkset.JWKOptions{
			Metadata: jwkset.JWKMetadataOptions{ALG: jwkset.AlgRS256, KID: keyID, USE: jwkset.UseSig},
		})
		require.NoError(t, err)
		require.NoError(t, store.KeyWrite(ctx, jwk))
	}

	raw, err := store.JSONPublic(ctx)
	require.NoError(t, err)

	return raw
}

// jwksServer serves a JWK Set and counts how often it was asked. While stalled, requests
// hang until resume is called.
type jwksServer struct {
	*httptest.Server
	hits atomic.Int32
	body atomic.Pointer[json.RawMessage]

	stall      atomic.Bool
	stalled    chan struct{}
	release    chan struct{}
	resumeOnce sync.Once
}

func newJWKSServer(t *testing.T, keys map[string]*rsa.PublicKey) *jwksServer {
	t.Helper()

	server := &jwksServer{
		stalled: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	server.serve(t, keys)
	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.hits.Add(1)

		if server.stall.Load() {
			select {
			case server.stalled <- struct{}{}:
			default:
			}

			select {
			case <-server.release:
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(*server.body.Load())
	}))
	t.Cleanup(server.Close)
	t.Cleanup(server.resume)

	return server
}

func (that *jwksServer) serve(t *testing.T, keys map[string]*rsa.PublicKey) {
	t.Helper()

	body := toJWKS(t, keys)
	that.body.Store(&body)
}

func (that *jwksServer) resume() {
	that.resumeOnce.Do(func() {
		close(that.release)
	})
}

// newTestContext is cancelled when the test ends, stopping background refreshes.
func newTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx
}
