package ctxutil

import (
	"context"
	"time"
)

type requestDataKey struct{}

// RequestData is the verified caller identity attached by the auth middleware.
type RequestData struct {
	UserID                string
	Email                 string
	Role                  string
	Tier                  string
	SubscriptionExpiresAt *time.Time
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

func (rd *RequestData) IsAdmin() bool {
	return rd != nil && rd.Role == "ADMIN"
}
