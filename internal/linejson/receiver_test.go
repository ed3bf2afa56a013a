package linejson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type chunkSource struct {
	chunks [][]byte
	err    error
}

func (s *chunkSource) Read(_ context.Context, p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return 0, s.err
		}

		return 0, io.EOF
	}
	chunk := s.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		s.chunks[0] = chunk[n:]
	} else {
		s.chunks = s.chunks[1:]
	}

	return n, nil
}

func newChunkSource(chunks ...string) *chunkSource {
	src := &chunkSource{}
	for _, c := range chunks {
		src.chunks = append(src.chunks, []byte(c))
	}

	return src
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, r *Receiver) []string {
	t.Helper()

	var out []string
	for {
		rec, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, string(rec))
	}
}

func TestReceiverTwoChunkScenario(t *testing.T) {
	r := NewReceiver(newChunkSource(`{"x":5`, "}\n{\"x\":6}\n"), ReceiverOptions{Logger: quietLogger()})

	got := collect(t, r)
	want := []string{`{"x":5}`, `{"x":6}`}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestReceiverChunkSplitsMatchSingleDelivery(t *testing.T) {
	payload := "{\"name\":\"café\",\"x\":1}\n{\"icon\":\"\U0001F579\",\"y\":2}\n  {\"pressed\":true}  \r\n"

	reference := collect(t, NewReceiver(newChunkSource(payload), ReceiverOptions{Logger: quietLogger()}))
	if len(reference) != 3 {
		t.Fatalf("expected 3 reference records, got %v", reference)
	}

	for i := 0; i <= len(payload); i++ {
		for j := i; j <= len(payload); j++ {
			src := newChunkSource(payload[:i], payload[i:j], payload[j:])
			got := collect(t, NewReceiver(src, ReceiverOptions{Logger: quietLogger()}))
			if len(got) != len(reference) {
				t.Fatalf("split %d/%d: expected %v, got %v", i, j, reference, got)
			}
			for k := range reference {
				if got[k] != reference[k] {
					t.Fatalf("split %d/%d record %d: expected %s, got %s", i, j, k, reference[k], got[k])
				}
			}
		}
	}
}

func TestReceiverByteAtATime(t *testing.T) {
	payload := "{\"label\":\"über\"}\n{\"x\":2}\n"
	chunks := make([]string, 0, len(payload))
	for i := range len(payload) {
		chunks = append(chunks, payload[i:i+1])
	}

	got := collect(t, NewReceiver(newChunkSource(chunks...), ReceiverOptions{Logger: quietLogger()}))
	if len(got) != 2 || got[0] != "{\"label\":\"über\"}" || got[1] != `{"x":2}` {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestReceiverNoNewlineNoRecord(t *testing.T) {
	var lines int
	r := NewReceiver(newChunkSource(`{"x":1}`), ReceiverOptions{
		Logger: quietLogger(),
		OnLine: func([]byte) { lines++ },
	})

	_, err := r.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if lines != 0 {
		t.Fatalf("expected no complete line, got %d", lines)
	}
	if _, ok := r.Latest(); ok {
		t.Fatalf("expected no latest record")
	}
}

func TestReceiverSingleLineYieldsExactlyOneRecord(t *testing.T) {
	var calls int
	r := NewReceiver(newChunkSource("{\"x\":512,\"y\":500,\"pressed\":false}\n"), ReceiverOptions{Logger: quietLogger()})

	err := r.Run(context.Background(), func(rec json.RawMessage) error {
		calls++
		var got struct {
			X       int  `json:"x"`
			Y       int  `json:"y"`
			Pressed bool `json:"pressed"`
		}
		if err := json.Unmarshal(rec, &got); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		if got.X != 512 || got.Y != 500 || got.Pressed {
			t.Fatalf("unexpected record: %+v", got)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one callback, got %d", calls)
	}
	latest, ok := r.Latest()
	if !ok || string(latest) != `{"x":512,"y":500,"pressed":false}` {
		t.Fatalf("unexpected latest record: %s", latest)
	}
}

func TestReceiverTrimsWhitespaceAndIgnoresBlankLines(t *testing.T) {
	r := NewReceiver(newChunkSource("\t {\"x\":1} \r\n\r\n   \n"), ReceiverOptions{Logger: quietLogger()})

	got := collect(t, r)
	if len(got) != 1 || got[0] != `{"x":1}` {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestReceiverStripsLeadingBOM(t *testing.T) {
	r := NewReceiver(newChunkSource("\xef\xbb\xbf{\"x\":1}\n"), ReceiverOptions{Logger: quietLogger()})

	got := collect(t, r)
	if len(got) != 1 || got[0] != `{"x":1}` {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestReceiverMalformedLineFailsByDefault(t *testing.T) {
	r := NewReceiver(newChunkSource("{\"x\":1}\nnot json\n{\"x\":2}\n"), ReceiverOptions{Logger: quietLogger()})

	if _, err := r.Next(context.Background()); err != nil {
		t.Fatalf("first record: %v", err)
	}
	_, err := r.Next(context.Background())
	var malformed *MalformedLineError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected malformed line error, got %v", err)
	}
	if malformed.Line != "not json" {
		t.Fatalf("unexpected malformed line: %q", malformed.Line)
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected wrapped json syntax error, got %v", err)
	}
}

func TestReceiverSkipPolicyContinues(t *testing.T) {
	var seen []string
	r := NewReceiver(newChunkSource("{\"x\":1}\n{oops\n{\"x\":2}\n"), ReceiverOptions{
		Policy:      PolicySkip,
		Logger:      quietLogger(),
		OnMalformed: func(err *MalformedLineError) { seen = append(seen, err.Line) },
	})

	got := collect(t, r)
	if len(got) != 2 || got[0] != `{"x":1}` || got[1] != `{"x":2}` {
		t.Fatalf("unexpected records: %v", got)
	}
	if len(seen) != 1 || seen[0] != "{oops" {
		t.Fatalf("expected malformed hook for one line, got %v", seen)
	}
}

func TestReceiverOversizedLineFollowsPolicy(t *testing.T) {
	r := NewReceiver(newChunkSource("{\"data\":\"0123456789\"}\n{\"x\":1}\n"), ReceiverOptions{
		Policy:       PolicySkip,
		MaxLineBytes: 10,
		Logger:       quietLogger(),
	})

	got := collect(t, r)
	if len(got) != 1 || got[0] != `{"x":1}` {
		t.Fatalf("unexpected records: %v", got)
	}

	strict := NewReceiver(newChunkSource("{\"data\":\"0123456789\"}\n"), ReceiverOptions{MaxLineBytes: 10, Logger: quietLogger()})
	if _, err := strict.Next(context.Background()); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected %v, got %v", ErrLineTooLong, err)
	}
}

func TestReceiverWrapsReadErrors(t *testing.T) {
	boom := errors.New("device unplugged")
	r := NewReceiver(&chunkSource{err: boom}, ReceiverOptions{Logger: quietLogger()})

	_, err := r.Next(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("read failure must not look like end of stream")
	}
}

func TestReceiverHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReceiver(newChunkSource(`{"x":1}`), ReceiverOptions{Logger: quietLogger()})

	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSource) Read(_ context.Context, p []byte) (int, error) {
	close(s.entered)
	<-s.release

	return 0, io.EOF
}

func TestReceiverRejectsConcurrentNext(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewReceiver(src, ReceiverOptions{Logger: quietLogger()})

	done := make(chan error, 1)
	go func() {
		_, err := r.Next(context.Background())
		done <- err
	}()
	<-src.entered

	if _, err := r.Next(context.Background()); !errors.Is(err, ErrConcurrentRead) {
		t.Fatalf("expected %v, got %v", ErrConcurrentRead, err)
	}

	close(src.release)
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("expected first reader to see EOF, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		raw     string
		want    MalformedPolicy
		wantErr bool
	}{
		{raw: "", want: PolicyFail},
		{raw: "fail", want: PolicyFail},
		{raw: " SKIP ", want: PolicySkip},
		{raw: "retry", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParsePolicy(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.raw)
			}

			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}
