package appcontext

import (
	"context"

	"github.com/google/uuid"
)

type REQUEST_CONTEXT string

var (
	RequestIDKey REQUEST_CONTEXT = "requestId"
)

// RequestIDHeader carries the request id in and out of the REST API.
const RequestIDHeader = "X-Request-Id"

func NewRequestID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
