package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func echoServer(t *testing.T, gotAuth chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		peer := New(ws)
		defer peer.Close()
		for {
			msg, err := peer.Read(r.Context())
			if err != nil {
				return
			}
			if string(msg) == "bye" {
				return
			}
			if err := peer.Write(r.Context(), msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDial_EchoAndAuthHeader(t *testing.T) {
	t.Parallel()

	auth := make(chan string, 1)
	srv := echoServer(t, auth)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx := context.Background()
	tr, err := Factory(url, WithAccessToken("s3cret"))(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if got := <-auth; got != "token s3cret" {
		t.Fatalf("authorization header: %q", got)
	}

	want := `{"jsonrpc":"2.0","method":"ping"}`
	if err := tr.Write(ctx, jsonrpc.Message(want)); err != nil {
		t.Fatal(err)
	}
	got, err := tr.Read(ctx)
	if err != nil || string(got) != want {
		t.Fatalf("got %q, %v", got, err)
	}

	// The server returns on "bye" and closes with a normal close frame.
	if err := tr.Write(ctx, jsonrpc.Message("bye")); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Read(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after server close, got %v", err)
	}
}

func TestClose_DoesNotWaitForStalledWrite(t *testing.T) {
	t.Parallel()

	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		// Never read, so the client's writes eventually fill the socket buffers.
		<-hold
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(hold) })
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx := context.Background()
	tr, err := Dial(ctx, url)
	if err != nil {
		t.Fatal(err)
	}

	payload := jsonrpc.Message(`"` + strings.Repeat("x", 1<<20) + `"`)
	writerDone := make(chan error, 1)
	go func() {
		for {
			if err := tr.Write(ctx, payload); err != nil {
				writerDone <- err
				return
			}
		}
	}()
	time.Sleep(200 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = tr.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close blocked behind a stalled write")
	}
	select {
	case <-writerDone:
	case <-time.After(3 * time.Second):
		t.Fatal("stalled write not released by Close")
	}
}

func TestDial_Failure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err == nil {
		t.Fatalf("expected dial error")
	}
}
