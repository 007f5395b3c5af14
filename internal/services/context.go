package services

import "context"

type contextKey string

const (
	campaignIDKey contextKey = "campaign_id"
	contactIDKey  contextKey = "contact_id"
	requestIDKey  contextKey = "request_id"
)

// WithCampaignID annotates context with the connection campaign identifier.
func WithCampaignID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, campaignIDKey, id)
}

// CampaignIDFromContext extracts the campaign identifier if present.
func CampaignIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(campaignIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithContactID annotates context with the contact being handled.
func WithContactID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contactIDKey, id)
}

// ContactIDFromContext returns the contact identifier if present.
func ContactIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(contactIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
