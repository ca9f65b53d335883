// Package authext is the default Extensions capability implementation: a
// JWT-backed authenticator/authorizer, exercising the capability contract
// end-to-end rather than leaving it as an empty interface.
package authext

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kataway/supergateway/federation/authz"
	"github.com/kataway/supergateway/federation/respstore"
)

// Verifier is a JWT-backed capability.Extensions implementation.
type Verifier struct {
	keyFunc jwt.Keyfunc
}

// New builds a Verifier that validates tokens with keyFunc (an HMAC secret
// lookup, a JWKS-backed RSA/ECDSA lookup, etc — left to the caller).
func New(keyFunc jwt.Keyfunc) *Verifier {
	return &Verifier{keyFunc: keyFunc}
}

// Authenticate parses and validates a bearer token, returning its claims.
func (v *Verifier) Authenticate(ctx context.Context, token string) (authz.Claims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc)
	if err != nil || !parsed.Valid {
		return authz.Claims{}, fmt.Errorf("invalid token: %w", err)
	}

	out := authz.Claims{Raw: map[string]any(claims)}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	switch sc := claims["scope"].(type) {
	case string:
		out.Scopes = splitScopes(sc)
	case []any:
		for _, s := range sc {
			if str, ok := s.(string); ok {
				out.Scopes = append(out.Scopes, str)
			}
		}
	}
	return out, nil
}

// Authorize evaluates one modifier rule. "authenticated" and "authorized"
// (the latter carries no gateway-recognized policy of its own in the
// federation spec, so it falls back to requiring authentication) deny
// unless claims.Subject is non-empty; "scopes"/"requiresScopes" evaluate
// metadata["scopes"] ([][]string OR-of-AND groups) against claims. Unknown
// rules deny.
func (v *Verifier) Authorize(ctx context.Context, rule string, claims authz.Claims, metadata map[string]any, value respstore.Value) (authz.Decision, error) {
	switch rule {
	case "authenticated", "authorized":
		if claims.Subject == "" {
			return authz.DenyAll, nil
		}
		return authz.Allow, nil
	case "scopes", "requiresScopes":
		groups, _ := metadata["scopes"].([][]string)
		return authz.EvaluateRequiresScopes(claims, groups), nil
	default:
		return authz.DenyAll, nil
	}
}

func splitScopes(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
