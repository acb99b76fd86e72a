package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
)

const bearerPrefix = "Bearer "

var (
	ErrMalformedHeader  = apperror.Wrap(apperror.ErrAuthentication, "invalid token header, no credentials provided")
	ErrUnknownKeyID     = apperror.Wrap(apperror.ErrAuthentication, "jwks key id not found")
	ErrTokenExpired     = apperror.Wrap(apperror.ErrAuthentication, "signature expired")
	ErrAudienceMismatch = apperror.Wrap(apperror.ErrAuthentication, "jwt audience mismatch")
	ErrTokenDecode      = apperror.Wrap(apperror.ErrAuthentication, "jwt decode error")
	ErrClaimsInvalid    = apperror.Wrap(apperror.ErrAuthentication, "token content is invalid")
)

type RolesConfig struct {
	Roles []string `json:"roles"`
}

// Claims is the content of an issuer token after the signature was checked.
type Claims struct {
	jwt.RegisteredClaims
	ResourceAccess map[string]RolesConfig `json:"resource_access"`
	GivenName      string                 `json:"given_name"`
	FamilyName     string                 `json:"family_name"`
}

type keySource interface {
	KeyfuncCtx(ctx context.Context) jwt.Keyfunc
}

// TokenVerifier checks tokens issued by the external identity provider.
type TokenVerifier struct {
	logger *slog.Logger

	keys             keySource
	audience         string
	verifyExpiration bool
	now              func() time.Time
}

// NewTokenVerifier builds a verifier; an empty audience disables the audience check.
func NewTokenVerifier(logger *slog.Logger, keys keySource, audience string, verifyExpiration bool) *TokenVerifier {
	return &TokenVerifier{
		logger:           logger.With("component", "auth"),
		keys:             keys,
		audience:         audience,
		verifyExpiration: verifyExpiration,
		now:              time.Now,
	}
}

// Verify validates a "Bearer <jwt>" string and returns its claims with Subject normalized to a uuid.
func (that *TokenVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	log := that.logger.With("method", "Verify")

	if !strings.HasPrefix(token, bearerPrefix) {
		return nil, ErrMalformedHeader
	}
	token = strings.TrimPrefix(token, bearerPrefix)

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithoutClaimsValidation())

	unverified, _, err := parser.ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, ErrTokenDecode
	}

	keyID, ok := unverified.Header["kid"].(string)
	if !ok || keyID == "" {
		return nil, ErrClaimsInvalid
	}

	keyfunc := that.keys.KeyfuncCtx(ctx)

	var (
		claims Claims
		keyErr error
	)
	if _, err = parser.ParseWithClaims(token, &claims, func(token *jwt.Token) (any, error) {
		key, err := keyfunc(token)
		keyErr = err
		return key, err
	}); err != nil {
		if keyErr != nil {
			log.Warn("signing key lookup failed", "kid", keyID, "error", keyErr)
			return nil, ErrUnknownKeyID
		}
		return nil, mapJWTError(err)
	}

	if err = that.validate(&claims); err != nil {
		return nil, err
	}

	return &claims, nil
}

func (that *TokenVerifier) validate(claims *Claims) error {
	if that.verifyExpiration && claims.ExpiresAt != nil && !claims.ExpiresAt.After(that.now()) {
		return ErrTokenExpired
	}

	if that.audience != "" && !slices.Contains([]string(claims.Audience), that.audience) {
		return ErrAudienceMismatch
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: sub is not a uuid", ErrClaimsInvalid)
	}
	claims.Subject = subject.String()

	if claims.ResourceAccess == nil {
		return fmt.Errorf("%w: resource_access is required", ErrClaimsInvalid)
	}

	if claims.GivenName == "" || claims.FamilyName == "" {
		return fmt.Errorf("%w: given_name and family_name are required", ErrClaimsInvalid)
	}

	return nil
}

// mapJWTError translates jwt library errors to authentication errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}

	if errors.Is(err, jwt.ErrTokenInvalidAudience) {
		return ErrAudienceMismatch
	}

	return ErrTokenDecode
}
