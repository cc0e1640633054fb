package connection

import (
	"context"
	"encoding/json"
)

// RequestHandler answers an inbound request. The returned value is encoded as
// the result. Returning a *RemoteError sends it as is; any other error is sent
// as an internal error.
//
// Handlers run on the connection's dispatch goroutine. They must not wait on
// a Call over the same connection; spawn a goroutine for that.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationHandler consumes an inbound notification. Errors are logged.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// HandleRequest adapts a typed function into a RequestHandler. Params that
// fail to decode are answered with an invalid-params error.
func HandleRequest[P, R any](fn func(ctx context.Context, params P) (R, error)) RequestHandler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewRemoteError(CodeInvalidParams, "invalid params: %v", err)
			}
		}
		return fn(ctx, p)
	}
}

// HandleNotification adapts a typed function into a NotificationHandler.
func HandleNotification[P any](fn func(ctx context.Context, params P) error) NotificationHandler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var p P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
		}
		return fn(ctx, p)
	}
}
