package nativemsg

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/pagetrail/internal/event"
)

type fakeDispatcher struct {
	kinds []event.Kind
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msg event.Message) (any, error) {
	f.kinds = append(f.kinds, msg.Kind())
	if msg.Kind() == event.KindFlushNow {
		return nil, errors.New("backend unreachable")
	}
	return map[string]int{"pages": 2}, nil
}

func frame(t *testing.T, raw string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(raw))); err != nil {
		t.Fatal(err)
	}
	buf.WriteString(raw)
	return buf.Bytes()
}

// TestFraming tests reading and writing frames.
func TestFraming(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := WriteMessage(&buf, map[string]string{"type": "flushNow"}); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		if got := binary.LittleEndian.Uint32(buf.Bytes()[:4]); int(got) != buf.Len()-4 {
			t.Errorf("length prefix = %d, body = %d", got, buf.Len()-4)
		}
		data, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		if string(data) != `{"type":"flushNow"}` {
			t.Errorf("data = %s", data)
		}
		if _, err := ReadMessage(&buf); !errors.Is(err, io.EOF) {
			t.Errorf("ReadMessage() on empty stream error = %v, want EOF", err)
		}
	})

	t.Run("oversized frame", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, uint32(MaxIncoming+1)) //nolint:errcheck
		if _, err := ReadMessage(&buf); !errors.Is(err, ErrMessageTooLarge) {
			t.Errorf("ReadMessage() error = %v, want ErrMessageTooLarge", err)
		}
	})

	t.Run("truncated body", func(t *testing.T) {
		t.Parallel()

		data := frame(t, `{"type":"flushNow"}`)
		if _, err := ReadMessage(bytes.NewReader(data[:len(data)-3])); err == nil {
			t.Error("ReadMessage() error = nil for truncated body")
		}
	})
}

// TestHostServe tests dispatch and responses.
func TestHostServe(t *testing.T) {
	t.Parallel()

	var in bytes.Buffer
	in.Write(frame(t, `{"type":"tabs.activated","tabId":3}`))
	in.Write(frame(t, `{"id":1,"type":"requestStatus"}`))
	in.Write(frame(t, `{"id":"two","type":"flushNow"}`))
	in.Write(frame(t, `{"id":3,"type":"bogus"}`))

	var out bytes.Buffer
	d := &fakeDispatcher{}
	h := NewHost(&in, &out, d, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := h.Serve(context.Background()); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if len(d.kinds) != 3 {
		t.Errorf("dispatched = %v", d.kinds)
	}

	var responses []Response
	for {
		data, err := ReadMessage(&out)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatal(err)
		}
		responses = append(responses, r)
	}
	if len(responses) != 3 {
		t.Fatalf("responses = %d, want 3", len(responses))
	}
	if string(responses[0].ID) != "1" || responses[0].Error != "" || responses[0].Result == nil {
		t.Errorf("status response = %+v", responses[0])
	}
	if string(responses[1].ID) != `"two"` || responses[1].Error == "" {
		t.Errorf("flush response = %+v", responses[1])
	}
	if responses[2].Error == "" {
		t.Errorf("unknown type response = %+v", responses[2])
	}
}
