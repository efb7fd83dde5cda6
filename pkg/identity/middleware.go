package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Trusted-proxy headers, used when no bearer token is presented.
const (
	UserHeader    = "X-Remote-User"
	CompanyHeader = "X-Remote-Company"
	RoleHeader    = "X-Remote-Role"
)

// Config configures the identity middleware.
type Config struct {
	// PublicKeyPath is the path to a PEM-encoded RSA public key for RS256
	// verification of bearer tokens. If empty, tokens are parsed but NOT
	// verified (suitable only behind a trusted proxy).
	PublicKeyPath string

	// Issuer is the expected token issuer (iss claim). If empty, issuer is
	// not validated.
	Issuer string

	// TrustedProxyHeaders enables the X-Remote-* header fallback alongside a
	// configured public key. With no public key the fallback is always active;
	// with one, headers are ignored unless this is set, so a caller reaching
	// the server directly cannot forge an identity past JWT verification.
	TrustedProxyHeaders bool

	Logger *zap.Logger
}

// Middleware returns HTTP middleware that resolves the actor identity from a
// JWT bearer token or, failing that, from X-Remote-* headers, and stores it
// in the request context. Requests with no resolvable identity are rejected
// with 401.
func Middleware(cfg Config) (func(http.Handler) http.Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		key, err := loadRSAPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		publicKey = key
		cfg.Logger.Info("identity middleware: RS256 verification enabled", zap.String("keyPath", cfg.PublicKeyPath))
	} else {
		cfg.Logger.Warn("identity middleware: no public key configured, tokens parsed without verification (trusted proxy mode)")
	}

	headerFallback := publicKey == nil || cfg.TrustedProxyHeaders

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := fromBearerToken(r, publicKey, cfg)
			if !ok && headerFallback {
				id, ok = fromHeaders(r)
			}
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": "no authenticated actor",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}, nil
}

// fromHeaders resolves identity from trusted-proxy headers.
func fromHeaders(r *http.Request) (Identity, bool) {
	user := strings.TrimSpace(r.Header.Get(UserHeader))
	company := strings.TrimSpace(r.Header.Get(CompanyHeader))
	if user == "" || company == "" {
		return Identity{}, false
	}
	return Identity{
		UserID:      user,
		CompanyID:   company,
		CompanyRole: normalizeRole(strings.TrimSpace(r.Header.Get(RoleHeader))),
	}, true
}

// fromBearerToken resolves identity from an Authorization bearer token.
// Expected claims: sub (user id), company_id, company_role.
func fromBearerToken(r *http.Request, publicKey *rsa.PublicKey, cfg Config) (Identity, bool) {
	raw := extractBearerToken(r)
	if raw == "" {
		return Identity{}, false
	}

	claims := jwt.MapClaims{}
	var err error
	if publicKey != nil {
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return publicKey, nil
		}, opts...)
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(raw, claims)
	}
	if err != nil {
		cfg.Logger.Debug("identity middleware: token rejected", zap.Error(err))
		return Identity{}, false
	}

	sub, _ := claims["sub"].(string)
	company, _ := claims["company_id"].(string)
	role, _ := claims["company_role"].(string)
	if sub == "" || company == "" {
		return Identity{}, false
	}

	return Identity{
		UserID:      sub,
		CompanyID:   company,
		CompanyRole: normalizeRole(role),
	}, true
}

// extractBearerToken pulls the token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// loadRSAPublicKey reads and parses a PEM-encoded RSA public key.
func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JWT public key from %s: %w", path, err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("decode PEM block from %s", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA (got %T)", parsed)
	}
	return rsaKey, nil
}
