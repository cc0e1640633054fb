package transport

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

func TestPipe_OrderAndDrainAfterClose(t *testing.T) {
	t.Parallel()

	a, b := Pipe()
	ctx := context.Background()

	for _, m := range []string{"1", "2", "3"} {
		if err := a.Write(ctx, jsonrpc.Message(m)); err != nil {
			t.Fatal(err)
		}
	}
	_ = a.Close()

	for _, want := range []string{"1", "2", "3"} {
		got, err := b.Read(ctx)
		if err != nil || string(got) != want {
			t.Fatalf("got %q, %v want %s", got, err, want)
		}
	}
	if _, err := b.Read(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if err := b.Write(ctx, jsonrpc.Message("x")); err == nil {
		t.Fatalf("write to closed peer should fail")
	}
	if _, err := a.Read(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("read on closed end: %v", err)
	}
}

func TestPipe_ReadHonorsContext(t *testing.T) {
	t.Parallel()

	_, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := b.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestStatic_HandsOutOnce(t *testing.T) {
	t.Parallel()

	a, _ := Pipe()
	f := Static(a)
	if got, err := f(context.Background()); err != nil || got != a {
		t.Fatalf("first call: %v", err)
	}
	if _, err := f(context.Background()); err == nil {
		t.Fatalf("second call should fail")
	}
}

func TestCommand_EchoesThroughCat(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	ctx := context.Background()
	tr, err := NewCommand("cat", nil, WithFraming(LineFraming))(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	want := `{"jsonrpc":"2.0","method":"ping"}`
	if err := tr.Write(ctx, jsonrpc.Message(want)); err != nil {
		t.Fatal(err)
	}
	got, err := tr.Read(ctx)
	if err != nil || string(got) != want {
		t.Fatalf("got %q, %v", got, err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCommand_FinalMessageThenEOF(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	want := `{"jsonrpc":"2.0","method":"bye"}`
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		tr, err := NewCommand("sh", []string{"-c", "printf '%s\\n' '" + want + "'; exit 0"}, WithFraming(LineFraming))(ctx)
		if err != nil {
			t.Fatal(err)
		}
		got, err := tr.Read(ctx)
		if err != nil || string(got) != want {
			t.Fatalf("run %d: got %q, %v", i, got, err)
		}
		if _, err := tr.Read(ctx); !errors.Is(err, io.EOF) {
			t.Fatalf("run %d: exit should read as io.EOF, got %v", i, err)
		}
		if err := tr.Close(); err != nil {
			t.Fatalf("run %d: close: %v", i, err)
		}
	}
}

func TestCommand_StartFailure(t *testing.T) {
	t.Parallel()

	_, err := NewCommand("/definitely/not/a/binary", nil)(context.Background())
	if err == nil {
		t.Fatalf("expected start failure")
	}
}
