// Package tenant carries the current tenant id through the request context.
// Every repository read and write is scoped by it.
package tenant

import (
	"context"
	"errors"
)

var ErrNoTenant = errors.New("tenant not resolved")

type ctxKey struct{}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Resolver supplies the tenant id scoping the current operation.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ContextResolver reads the tenant id placed in the context by the HTTP
// middleware or by a message consumer.
type ContextResolver struct{}

func (ContextResolver) Resolve(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoTenant
	}
	return id, nil
}
