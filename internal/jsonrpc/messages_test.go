package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestDecode_Classification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want MessageType
	}{
		{"request numeric id", `{"jsonrpc":"2.0","id":1,"method":"textDocument/hover","params":{}}`, TypeRequest},
		{"request string id", `{"jsonrpc":"2.0","id":"abc","method":"workspace/configuration"}`, TypeRequest},
		{"notification", `{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{}}`, TypeNotification},
		{"response result", `{"jsonrpc":"2.0","id":3,"result":{"contents":"x"}}`, TypeResponse},
		{"response null result", `{"jsonrpc":"2.0","id":3,"result":null}`, TypeResponse},
		{"response error", `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"nope"}}`, TypeResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Decode(Message(tc.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := m.Type(); got != tc.want {
				t.Fatalf("type: got %s want %s", got, tc.want)
			}
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		`not json`,
		`{"jsonrpc":"1.0","id":1,"method":"x"}`,
		`{"jsonrpc":"2.0","id":1,"method":"x","result":1}`,
		`{"jsonrpc":"2.0","id":1}`,
		`{"jsonrpc":"2.0","id":1,"result":1,"error":{"code":1,"message":"m"}}`,
		`{"jsonrpc":"2.0","id":1.5,"method":"x"}`,
	} {
		if _, err := Decode(Message(in)); err == nil {
			t.Fatalf("expected error decoding %s", in)
		}
	}
}

func TestRequestID_RoundTrip(t *testing.T) {
	t.Parallel()

	var str AnyMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"7","method":"m"}`), &str); err != nil {
		t.Fatal(err)
	}
	if _, ok := str.ID.Value().(string); !ok {
		t.Fatalf("quoted id should stay a string, got %T", str.ID.Value())
	}

	var num AnyMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"method":"m"}`), &num); err != nil {
		t.Fatal(err)
	}
	if v, ok := num.ID.Value().(int64); !ok || v != 7 {
		t.Fatalf("numeric id: got %#v", num.ID.Value())
	}

	b, err := json.Marshal(NewRequestID(42))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "42" {
		t.Fatalf("marshal id: got %s", b)
	}
}

func TestNewResultResponse_NullResult(t *testing.T) {
	t.Parallel()

	res, err := NewResultResponse(NewRequestID(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(res)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"jsonrpc":"2.0","result":null,"id":1}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
}

func TestPeekID(t *testing.T) {
	t.Parallel()

	id := PeekID(Message(`{"jsonrpc":"1.0","id":9,"method":"m"}`))
	if id == nil || id.String() != "9" {
		t.Fatalf("expected id 9, got %v", id)
	}
	if PeekID(Message(`{"jsonrpc":"2.0","id":9,"result":1}`)) != nil {
		t.Fatalf("responses should not yield an id")
	}
}
