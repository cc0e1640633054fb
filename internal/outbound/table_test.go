package outbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

func TestTable_IDsAreMonotonic(t *testing.T) {
	t.Parallel()

	tb := New()
	var last int64
	for i := 0; i < 5; i++ {
		c, err := tb.Begin()
		if err != nil {
			t.Fatal(err)
		}
		v := c.ID.Value().(int64)
		if v <= last {
			t.Fatalf("id %d not greater than %d", v, last)
		}
		last = v
	}
	if tb.Len() != 5 {
		t.Fatalf("expected 5 pending, got %d", tb.Len())
	}
}

func TestTable_ResolveOutOfOrder(t *testing.T) {
	t.Parallel()

	tb := New()
	calls := make([]*Call, 3)
	for i := range calls {
		c, err := tb.Begin()
		if err != nil {
			t.Fatal(err)
		}
		calls[i] = c
	}

	for _, i := range []int{2, 0, 1} {
		resp, _ := jsonrpc.NewResultResponse(calls[i].ID, i)
		if !tb.Resolve(resp) {
			t.Fatalf("resolve %d: not matched", i)
		}
	}

	for i, c := range calls {
		resp, err := c.Wait(context.Background())
		if err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		if resp.ID.String() != c.ID.String() {
			t.Fatalf("call %d got response for %s", i, resp.ID)
		}
	}
}

func TestTable_UnmatchedResponse(t *testing.T) {
	t.Parallel()

	tb := New()
	resp, _ := jsonrpc.NewResultResponse(jsonrpc.NewRequestID(99), nil)
	if tb.Resolve(resp) {
		t.Fatalf("unexpected match for unknown id")
	}
}

func TestTable_IDTypeMustMatch(t *testing.T) {
	t.Parallel()

	tb := New()
	c, _ := tb.Begin()

	asString, _ := jsonrpc.NewResultResponse(jsonrpc.NewRequestID(c.ID.String()), "wrong kind")
	if tb.Resolve(asString) {
		t.Fatalf("string id %q resolved a numeric request", c.ID)
	}
	if tb.Len() != 1 {
		t.Fatalf("call should still be pending")
	}

	resp, _ := jsonrpc.NewResultResponse(c.ID, "ok")
	if !tb.Resolve(resp) {
		t.Fatalf("numeric id not matched")
	}
	got, err := c.Wait(context.Background())
	if err != nil || string(got.Result) != `"ok"` {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestTable_CloseRejectsPending(t *testing.T) {
	t.Parallel()

	tb := New()
	done, _ := tb.Begin()
	resp, _ := jsonrpc.NewResultResponse(done.ID, "ok")
	tb.Resolve(resp)

	var pending []*Call
	for i := 0; i < 3; i++ {
		c, _ := tb.Begin()
		pending = append(pending, c)
	}

	closeErr := errors.New("gone")
	tb.Close(closeErr)
	tb.Close(errors.New("second close ignored"))

	for _, c := range pending {
		if _, err := c.Wait(context.Background()); !errors.Is(err, closeErr) {
			t.Fatalf("expected close error, got %v", err)
		}
	}
	if got, err := done.Wait(context.Background()); err != nil || got == nil {
		t.Fatalf("resolved call affected by close: %v", err)
	}
	if _, err := tb.Begin(); !errors.Is(err, closeErr) {
		t.Fatalf("begin after close: %v", err)
	}
}

func TestTable_WaitContextForgets(t *testing.T) {
	t.Parallel()

	tb := New()
	c, _ := tb.Begin()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if tb.Len() != 0 {
		t.Fatalf("expected pending entry to be forgotten")
	}
}
