package features

import (
	"context"
	"fmt"
	"time"

	"github.com/ggoodman/langclient-go/lsp"
	"golang.org/x/time/rate"
)

// Requester issues outbound requests. *session.Session implements it.
type Requester interface {
	SendRequest(ctx context.Context, method lsp.Method, params, result any) error
}

// RequestPolicy decorates a Requester.
type RequestPolicy func(Requester) Requester

type requesterFunc func(ctx context.Context, method lsp.Method, params, result any) error

func (f requesterFunc) SendRequest(ctx context.Context, method lsp.Method, params, result any) error {
	return f(ctx, method, params, result)
}

// Timeout bounds how long callers wait for each response. The request is not
// cancelled on the peer; a late response is dropped.
func Timeout(d time.Duration) RequestPolicy {
	return func(next Requester) Requester {
		return requesterFunc(func(ctx context.Context, method lsp.Method, params, result any) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			if err := next.SendRequest(ctx, method, params, result); err != nil {
				return fmt.Errorf("%s: %w", method, err)
			}
			return nil
		})
	}
}

// Throttle delays requests so that at most limiter's rate are sent.
func Throttle(limiter *rate.Limiter) RequestPolicy {
	return func(next Requester) Requester {
		return requesterFunc(func(ctx context.Context, method lsp.Method, params, result any) error {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: throttled: %w", method, err)
			}
			return next.SendRequest(ctx, method, params, result)
		})
	}
}

// Chain applies policies so that the first one is outermost.
func Chain(policies ...RequestPolicy) RequestPolicy {
	return func(r Requester) Requester {
		for i := len(policies) - 1; i >= 0; i-- {
			r = policies[i](r)
		}
		return r
	}
}

func applyPolicy(r Requester, p RequestPolicy) Requester {
	if p == nil {
		return r
	}
	return p(r)
}
