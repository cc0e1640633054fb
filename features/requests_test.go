package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/langclient-go/lsp"
	"golang.org/x/time/rate"
)

type blockingRequester struct {
	calls int
}

func (b *blockingRequester) SendRequest(ctx context.Context, method lsp.Method, params, result any) error {
	b.calls++
	<-ctx.Done()
	return ctx.Err()
}

type countingRequester struct {
	calls int
}

func (c *countingRequester) SendRequest(ctx context.Context, method lsp.Method, params, result any) error {
	c.calls++
	return nil
}

func TestTimeout_BoundsWait(t *testing.T) {
	t.Parallel()

	inner := &blockingRequester{}
	r := Timeout(10 * time.Millisecond)(inner)
	err := r.SendRequest(context.Background(), lsp.HoverMethod, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls %d", inner.calls)
	}
}

func TestThrottle_WaitsForTokens(t *testing.T) {
	t.Parallel()

	inner := &countingRequester{}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	r := Chain(Timeout(20*time.Millisecond), Throttle(limiter))(inner)

	if err := r.SendRequest(context.Background(), lsp.HoverMethod, nil, nil); err != nil {
		t.Fatal(err)
	}
	// The bucket is empty; the timeout fires before a token is available.
	if err := r.SendRequest(context.Background(), lsp.HoverMethod, nil, nil); err == nil {
		t.Fatalf("expected throttled request to fail")
	}
	if inner.calls != 1 {
		t.Fatalf("calls %d", inner.calls)
	}
}
