package authz

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT identity middleware.
type JWTConfig struct {
	// UserClaim is the claim carrying the stable user id. Default: "sub".
	UserClaim string

	// PublicKeyPath is the path to the PEM-encoded RSA public key for
	// RS256 verification. If empty, tokens are parsed but NOT verified
	// (suitable only behind a trusted authenticating proxy).
	PublicKeyPath string

	// Issuer is the expected token issuer (iss claim). If empty, issuer
	// is not validated.
	Issuer string

	// Audience is the expected token audience (aud claim). If empty,
	// audience is not validated.
	Audience string

	// Logger for debugging. If nil, uses slog.Default().
	Logger *slog.Logger
}

// NewJWTIdentityMiddleware returns middleware that extracts identity from
// a JWT Bearer token in the Authorization header.
//
// Security model:
//   - If PublicKeyPath is set, tokens are cryptographically verified (RS256)
//   - If PublicKeyPath is empty, tokens are parsed without verification
//   - Missing or invalid tokens yield an empty identity (deny by default
//     for owner-scoped endpoints)
func NewJWTIdentityMiddleware(cfg JWTConfig) (func(http.Handler) http.Handler, error) {
	if cfg.UserClaim == "" {
		cfg.UserClaim = "sub"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key from %s: %w", cfg.PublicKeyPath, err)
		}
		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM block from %s", cfg.PublicKeyPath)
		}
		parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		rsaKey, ok := parsedKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key in %s is not an RSA key", cfg.PublicKeyPath)
		}
		publicKey = rsaKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := extractJWTUser(r, cfg, publicKey)
			ctx := WithIdentity(r.Context(), Identity{User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func extractJWTUser(r *http.Request, cfg JWTConfig, publicKey *rsa.PublicKey) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims := jwt.MapClaims{}
	var err error
	if publicKey != nil {
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		if cfg.Audience != "" {
			opts = append(opts, jwt.WithAudience(cfg.Audience))
		}
		_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			return publicKey, nil
		}, opts...)
	} else {
		// Trusted proxy mode: the proxy already verified the token.
		_, _, err = jwt.NewParser().ParseUnverified(tokenString, claims)
	}
	if err != nil {
		cfg.Logger.Debug("rejecting invalid bearer token", "error", err)
		return ""
	}

	user, _ := claims[cfg.UserClaim].(string)
	return user
}
