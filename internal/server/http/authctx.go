package httpserver

import (
	"context"

	"github.com/and161185/nevi/internal/service"
)

type ctxKey string

const authRequestKey ctxKey = "nevi.authRequest"

// WithAuthRequest stores the request's authentication context.
func WithAuthRequest(ctx context.Context, req *service.Request) context.Context {
	return context.WithValue(ctx, authRequestKey, req)
}

// AuthRequestFromCtx fetches the authentication context stored by the session middleware.
func AuthRequestFromCtx(ctx context.Context) (*service.Request, bool) {
	req, ok := ctx.Value(authRequestKey).(*service.Request)
	return req, ok && req != nil
}
