package contexts

import (
	"context"
)

// ContextKey defines the context key type.
type ContextKey string

const (
	// containerContextKey is used to store the context container in the context.
	containerContextKey ContextKey = "context_container"
)

// WithTraceID stores the trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return setString(ctx, func(c *contextContainer) { c.TraceID = &traceID })
}

// GetTraceID retrieves the trace id from the context.
func GetTraceID(ctx context.Context) (string, bool) {
	return getString(ctx, func(c *contextContainer) *string { return c.TraceID })
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return setString(ctx, func(c *contextContainer) { c.RequestID = &requestID })
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	return getString(ctx, func(c *contextContainer) *string { return c.RequestID })
}

// WithOperationName stores the operation name in the context.
func WithOperationName(ctx context.Context, name string) context.Context {
	return setString(ctx, func(c *contextContainer) { c.OperationName = &name })
}

// GetOperationName retrieves the operation name from the context.
func GetOperationName(ctx context.Context) (string, bool) {
	return getString(ctx, func(c *contextContainer) *string { return c.OperationName })
}

// WithUserID stores the id of the user the request acts for.
func WithUserID(ctx context.Context, userID string) context.Context {
	return setString(ctx, func(c *contextContainer) { c.UserID = &userID })
}

// GetUserID retrieves the user id from the context.
func GetUserID(ctx context.Context) (string, bool) {
	return getString(ctx, func(c *contextContainer) *string { return c.UserID })
}

// AddError records a non-fatal error for the access log.
func AddError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}

	container := getContainer(ctx)

	container.mu.Lock()
	container.Errors = append(container.Errors, err)
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetErrors returns the errors recorded with AddError.
func GetErrors(ctx context.Context) []error {
	container := getContainer(ctx)

	container.mu.RLock()
	defer container.mu.RUnlock()

	return append([]error(nil), container.Errors...)
}
