package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/status"
)

func newTracker() *status.Tracker {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Session:     "test-session",
		Mode:        "poll",
		PollMs:      5,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
	return status.NewTracker(start, cfg, []status.Button{
		{Name: "doorbell", Pin: 17},
		{Name: "light", Pin: 27},
	})
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *status.Tracker) {
	t.Helper()
	if opts.Logger == nil {
		l, _ := test.NewNullLogger()
		opts.Logger = l
	}
	tr := newTracker()
	srv := New(":0", tr, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.Record(logic.Event{Button: "light", Type: logic.EventPress}, time.Now())
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if len(sj.Status.Buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(sj.Status.Buttons))
	}
	if sj.Status.Buttons[0].State != "INIT" {
		t.Errorf("doorbell state: got %q, want INIT", sj.Status.Buttons[0].State)
	}
	if sj.Status.Buttons[1].LastEvent != "PRESS" {
		t.Errorf("light last event: got %q, want PRESS", sj.Status.Buttons[1].LastEvent)
	}
	if sj.Status.Counts.Press != 1 {
		t.Errorf("press count: got %d, want 1", sj.Status.Counts.Press)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected")
	}
	if sj.Status.Session != "test-session" {
		t.Errorf("session: got %q", sj.Status.Session)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getStatus(t, ts.URL)
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, Options{})
	tr.Record(logic.Event{Button: "doorbell", Type: logic.EventClick, Count: 2}, time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`id="btn-doorbell"`, `id="btn-light"`, "CLICK", "test-session"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	for _, path := range []string{"/nonexistent", "/ws", "/reset"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != 404 {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}
}

// serveResets answers reset requests with err and reports the buttons it saw.
func serveResets(t *testing.T, resets <-chan ResetRequest, err error) <-chan string {
	t.Helper()
	seen := make(chan string, 10)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go func() {
		for {
			select {
			case req := <-resets:
				seen <- req.Button
				req.Done <- err
			case <-done:
				return
			}
		}
	}()
	return seen
}

func postReset(t *testing.T, url string) (int, resetResponse) {
	t.Helper()
	resp, err := http.Post(url, "", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var rr resetResponse
	json.NewDecoder(resp.Body).Decode(&rr)
	return resp.StatusCode, rr
}

func TestResetButton(t *testing.T) {
	resets := make(chan ResetRequest)
	ts, _ := newTestServer(t, Options{Resets: resets})
	seen := serveResets(t, resets, nil)

	code, rr := postReset(t, ts.URL+"/reset?button=light")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%+v)", code, rr)
	}
	if rr.Reset != "light" {
		t.Errorf("reset: got %q, want light", rr.Reset)
	}
	if got := <-seen; got != "light" {
		t.Errorf("run loop saw %q, want light", got)
	}
}

func TestResetAll(t *testing.T) {
	resets := make(chan ResetRequest)
	ts, _ := newTestServer(t, Options{Resets: resets})
	seen := serveResets(t, resets, nil)

	code, rr := postReset(t, ts.URL+"/reset")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", code)
	}
	if rr.Reset != "all" {
		t.Errorf("reset: got %q, want all", rr.Reset)
	}
	if got := <-seen; got != "" {
		t.Errorf("run loop saw %q, want empty name", got)
	}
}

func TestResetUnknownButton(t *testing.T) {
	resets := make(chan ResetRequest)
	ts, _ := newTestServer(t, Options{Resets: resets})

	code, rr := postReset(t, ts.URL+"/reset?button=garage")
	if code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", code)
	}
	if rr.Error == "" {
		t.Error("expected error message")
	}
}

func TestResetRunLoopError(t *testing.T) {
	resets := make(chan ResetRequest)
	ts, _ := newTestServer(t, Options{Resets: resets})
	serveResets(t, resets, errors.New("group not running"))

	code, rr := postReset(t, ts.URL+"/reset?button=doorbell")
	if code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", code)
	}
	if rr.Error != "group not running" {
		t.Errorf("error: got %q", rr.Error)
	}
}

func TestResetRequiresPost(t *testing.T) {
	resets := make(chan ResetRequest)
	ts, _ := newTestServer(t, Options{Resets: resets})

	resp, err := http.Get(ts.URL + "/reset?button=light")
	if err != nil {
		t.Fatalf("GET /reset: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != http.MethodPost {
		t.Errorf("Allow: got %q", resp.Header.Get("Allow"))
	}
}
