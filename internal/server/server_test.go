package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skobkin/joylink/internal/connectors"
	"github.com/skobkin/joylink/internal/device"
	"github.com/skobkin/joylink/internal/domain"
)

type fakeStatus struct{ status connectors.ConnectionStatus }

func (f fakeStatus) Current() connectors.ConnectionStatus { return f.status }

type fakeReadings struct {
	reading domain.JoystickReading
	ok      bool
}

func (f fakeReadings) Latest() (domain.JoystickReading, bool) { return f.reading, f.ok }

type fakeSender struct {
	mu   sync.Mutex
	got  []domain.LEDCommand
	err  error
	sent time.Time
}

func (f *fakeSender) SendCommand(_ context.Context, update domain.LEDCommand) <-chan device.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, update)

	ch := make(chan device.SendResult, 1)
	if f.err != nil {
		ch <- device.SendResult{Err: f.err}
	} else {
		raw, _ := json.Marshal(update)
		ch <- device.SendResult{Command: domain.SentCommand{Command: update, Payload: string(raw), SentAt: f.sent}}
	}
	close(ch)

	return ch
}

type fakeHistory struct {
	limit int
}

func (f *fakeHistory) ListRecent(_ context.Context, limit int) ([]domain.JoystickReading, error) {
	f.limit = limit

	return []domain.JoystickReading{{X: 2}, {X: 1}}, nil
}

type fakeRecorder struct {
	mu    sync.Mutex
	paths []string
	codes []int
}

func (f *fakeRecorder) RecordHTTPRequest(_ string, path string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.codes = append(f.codes, status)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func TestGetStatus(t *testing.T) {
	h := NewRouter(Deps{Status: fakeStatus{status: connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "serial",
		Target:        "/dev/ttyACM0@9600",
	}}})

	rr := do(t, h, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "connected", resp["state"])
	assert.Equal(t, "/dev/ttyACM0@9600", resp["target"])
}

func TestGetJoystick(t *testing.T) {
	empty := NewRouter(Deps{Readings: fakeReadings{}})
	rr := do(t, empty, http.MethodGet, "/api/joystick", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	full := NewRouter(Deps{Readings: fakeReadings{reading: domain.JoystickReading{X: 512, Y: 10, Pressed: true}, ok: true}})
	rr = do(t, full, http.MethodGet, "/api/joystick", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var got domain.JoystickReading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 512.0, got.X)
	assert.True(t, got.Pressed)
}

func TestPutLED(t *testing.T) {
	sender := &fakeSender{sent: time.Unix(1700000000, 0).UTC()}
	h := NewRouter(Deps{Sender: sender})

	rr := do(t, h, http.MethodPut, "/api/led", `{"red":255,"green":0,"blue":0}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp sentCommandResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, `{"red":255,"green":0,"blue":0}`, resp.Payload)
	require.Len(t, sender.got, 1)
	assert.Equal(t, 255, *sender.got[0].Red)
}

func TestPutLEDRejectsInvalidInput(t *testing.T) {
	sender := &fakeSender{}
	h := NewRouter(Deps{Sender: sender})

	for _, body := range []string{
		`{"red":300}`,
		`{}`,
		`{"colour":1}`,
		`not json`,
	} {
		rr := do(t, h, http.MethodPut, "/api/led", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Empty(t, sender.got)
}

func TestPutLEDMapsSendErrors(t *testing.T) {
	closed := NewRouter(Deps{Sender: &fakeSender{err: device.ErrNotOpen}})
	rr := do(t, closed, http.MethodPut, "/api/led", `{"brightness":5}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	broken := NewRouter(Deps{Sender: &fakeSender{err: errors.New("write line: i/o error")}})
	rr = do(t, broken, http.MethodPut, "/api/led", `{"brightness":5}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestListReadings(t *testing.T) {
	disabled := NewRouter(Deps{})
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/api/readings", "").Code)

	history := &fakeHistory{}
	h := NewRouter(Deps{History: history})

	rr := do(t, h, http.MethodGet, "/api/readings?limit=2", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, history.limit)

	var got []domain.JoystickReading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/readings?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/readings?limit=abc", "").Code)
}

func TestMetricsAndRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("joylink_up 1\n"))
	})
	h := NewRouter(Deps{Status: fakeStatus{}, Metrics: metrics, Recorder: rec})

	rr := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "joylink_up 1")

	do(t, h, http.MethodGet, "/api/status", "")
	do(t, h, http.MethodGet, "/nope", "")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"/metrics", "/api/status", "/nope"}, rec.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusNotFound}, rec.codes)
}

func TestServeListenerStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, NewRouter(Deps{}), nil)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
