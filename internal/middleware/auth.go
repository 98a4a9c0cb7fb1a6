package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/api/transport"
	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/internal/config"
	"github.com/fastygo/taskflow/pkg/httpcontext"
)

var errNoVerificationKey = errors.New("middleware: no key for token algorithm")

// Verifier checks bearer tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	rsaKey *rsa.PublicKey
	issuer string
}

// NewVerifier accepts HS256 tokens when a secret is configured and RS256
// tokens when a PEM public key is configured.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer}
	if cfg.Secret != "" {
		v.secret = []byte(cfg.Secret)
	}
	if cfg.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse JWT public key: %w", err)
		}
		v.rsaKey = key
	}
	if v.secret == nil && v.rsaKey == nil {
		return nil, errNoVerificationKey
	}
	return v, nil
}

// Verify parses token and returns the identity it asserts.
func (v *Verifier) Verify(token string) (httpcontext.Identity, error) {
	parsed, err := jwt.Parse(token, v.key, jwt.WithValidMethods([]string{"HS256", "RS256"}))
	if err != nil {
		return httpcontext.Identity{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return httpcontext.Identity{}, errors.New("invalid token claims")
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return httpcontext.Identity{}, errors.New("unexpected token issuer")
	}

	id := httpcontext.Identity{
		UserID:    firstClaim(claims, "sub", "user_id"),
		SessionID: firstClaim(claims, "sid"),
		Email:     firstClaim(claims, "email"),
		Name:      firstClaim(claims, "name"),
		ImageURL:  firstClaim(claims, "picture", "image_url"),
	}
	if id.UserID == "" {
		return httpcontext.Identity{}, errors.New("token has no subject")
	}
	if id.SessionID == "" {
		id.SessionID = id.UserID
	}
	return id, nil
}

func (v *Verifier) key(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret != nil {
			return v.secret, nil
		}
	case *jwt.SigningMethodRSA:
		if v.rsaKey != nil {
			return v.rsaKey, nil
		}
	}
	return nil, errNoVerificationKey
}

// ProfileSyncer mirrors the caller into the users table.
type ProfileSyncer interface {
	Sync(ctx context.Context, user *domain.User, sessionID string) error
}

// JWTAuth rejects requests without a valid bearer token. Verified callers are
// stored on the request and handed to syncer; a failed sync is logged only.
func JWTAuth(verifier *Verifier, syncer ProfileSyncer, adapter *httpcontext.Adapter, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx)
				return
			}

			id, err := verifier.Verify(tokenString)
			if err != nil {
				logger.Warn("invalid jwt token",
					zap.String("request_id", httpcontext.RequestID(ctx)),
					zap.Error(err))
				unauthorized(ctx)
				return
			}
			httpcontext.SetIdentity(ctx, id)

			if syncer != nil {
				stdCtx, cancel := adapter.Attach(ctx)
				err := syncer.Sync(stdCtx, identityUser(id), id.SessionID)
				cancel()
				if err != nil {
					logger.Warn("profile sync failed",
						zap.String("request_id", httpcontext.RequestID(ctx)),
						zap.String("user_id", id.UserID),
						zap.Error(err))
				}
			}

			next(ctx)
		}
	}
}

func identityUser(id httpcontext.Identity) *domain.User {
	return &domain.User{
		ID:       id.UserID,
		Email:    id.Email,
		Name:     id.Name,
		ImageURL: id.ImageURL,
	}
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if s, ok := claims[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
