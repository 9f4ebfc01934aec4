package identity

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller identity extracted from an inbound
// credential. It carries the user id and the raw claims; roles are resolved
// per request against the role store, never read from the token.
type Identity struct {
	UserID string
	Claims *Claims
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type ctxKey string

const contextIdentityKey ctxKey = "identity"

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextIdentityKey).(*Identity)
	return id, ok
}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, id)
}
