package localserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/openwearables/pulse/internal/config"
	"github.com/openwearables/pulse/internal/record"
	"github.com/openwearables/pulse/internal/transport"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	addr := ts.Listener.Addr().(*net.TCPAddr)
	cfg := &config.LocalServerEnvConfig{
		ServerHost:     "127.0.0.1",
		ServerPort:     addr.Port,
		ClientTimeout:  5 * time.Second,
		FetchLimit:     500,
		UploadRetryMax: 1,
		ProbeTimeout:   time.Second,
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, ts
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	data, err := sonic.Marshal(v)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func TestTestReachable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		writeJSON(t, w, 200, healthResponse{Status: "healthy", Version: "1.0.0", Timestamp: time.Now()})
	}))

	if !client.TestReachable(context.Background()) {
		t.Fatalf("expected server to be reachable")
	}
	if !client.Alive() {
		t.Fatalf("liveness flag not updated")
	}
}

func TestTestReachableDown(t *testing.T) {
	client, ts := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, healthResponse{Status: "healthy"})
	}))
	ts.Close()

	if client.TestReachable(context.Background()) {
		t.Fatalf("closed server should not be reachable")
	}
	if client.Alive() {
		t.Fatalf("liveness flag should be cleared")
	}
}

func TestFetch(t *testing.T) {
	since := time.Unix(1000, 0).UTC()
	batch := record.Batch{
		ID: "b1",
		HeartRate: []record.HeartRate{
			{ID: "h1", Timestamp: since.Add(time.Minute), ValueBPM: 71},
		},
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/data" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("since"); got != since.Format(time.RFC3339) {
			t.Fatalf("since param = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "500" {
			t.Fatalf("limit param = %q", got)
		}
		writeJSON(t, w, 200, dataResponse{Batch: batch, Timestamp: time.Now()})
	}))

	got, err := client.Fetch(context.Background(), since)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.ID != "b1" || len(got.HeartRate) != 1 || got.HeartRate[0].ID != "h1" {
		t.Fatalf("unexpected batch: %+v", got)
	}
}

func TestFetchZstdResponse(t *testing.T) {
	batch := record.Batch{
		ID:        "b-z",
		StepCount: []record.StepCount{{ID: "s1", Timestamp: time.Unix(2000, 0).UTC(), Count: 840}},
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := sonic.Marshal(dataResponse{Batch: batch})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "zstd")
		w.WriteHeader(200)
		w.Write(enc.EncodeAll(data, nil))
	}))

	got, err := client.Fetch(context.Background(), time.Unix(0, 0).UTC())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got.StepCount) != 1 || got.StepCount[0].Count != 840 {
		t.Fatalf("unexpected batch: %+v", got)
	}
}

func TestFetchNotFoundMeansEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))

	got, err := client.Fetch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if !got.IsEmpty() {
		t.Fatalf("404 should yield an empty batch, got %+v", got)
	}
}

func TestFetchBadRequest(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
	}))

	_, err := client.Fetch(context.Background(), time.Now())
	if transport.KindOf(err) != transport.KindBadRequest {
		t.Fatalf("expected bad request kind, got %v", err)
	}
	if transport.Retryable(err) {
		t.Fatalf("bad request must not be retryable")
	}
}

func TestFetchServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))

	_, err := client.Fetch(context.Background(), time.Now())
	if transport.KindOf(err) != transport.KindNetwork {
		t.Fatalf("expected network kind, got %v", err)
	}
	if !transport.Retryable(err) {
		t.Fatalf("5xx should be retryable")
	}
}

func TestSend(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/data" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var got record.Batch
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode upload: %v", err)
		}
		if got.ID != "out-1" {
			t.Fatalf("unexpected batch id %q", got.ID)
		}
		writeJSON(t, w, 200, uploadResponse{Status: "success", ProcessedCount: got.TotalCount()})
	}))

	batch := record.Batch{
		ID:        "out-1",
		HeartRate: []record.HeartRate{{ID: "h1", Timestamp: time.Unix(1, 0).UTC()}},
	}
	if err := client.Send(context.Background(), batch); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendConflictIsSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 409, uploadResponse{Status: "duplicate"})
	}))

	if err := client.Send(context.Background(), record.Batch{ID: "dup"}); err != nil {
		t.Fatalf("409 should be treated as already synced: %v", err)
	}
}

func TestSendBadRequest(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
	}))

	err := client.Send(context.Background(), record.Batch{ID: "bad"})
	if transport.KindOf(err) != transport.KindBadRequest {
		t.Fatalf("expected bad request kind, got %v", err)
	}
}

func TestSendRetriesServerError(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(502)
			return
		}
		writeJSON(t, w, 200, uploadResponse{Status: "success"})
	}))

	if err := client.Send(context.Background(), record.Batch{ID: "retry"}); err != nil {
		t.Fatalf("send should succeed after retry: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestUpdateAddress(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, healthResponse{Status: "healthy"})
	}))

	if !client.TestReachable(context.Background()) {
		t.Fatalf("server should be reachable before repointing")
	}

	client.UpdateAddress("192.168.1.50", 9000)
	if client.BaseURL() != "http://192.168.1.50:9000" {
		t.Fatalf("base url = %q", client.BaseURL())
	}
	if client.Alive() {
		t.Fatalf("repointing must clear the liveness flag")
	}

	// Port zero keeps the configured port.
	client.UpdateAddress("192.168.1.60", 0)
	want := fmt.Sprintf("http://192.168.1.60:%d", client.cfg.ServerPort)
	if client.BaseURL() != want {
		t.Fatalf("base url = %q, want %q", client.BaseURL(), want)
	}
}

func TestDiscover(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, 200, healthResponse{Status: "healthy"})
	}))

	found := client.Discover(context.Background(), []string{"127.0.0.1", "203.0.113.1"})
	if len(found) != 1 || found[0] != "127.0.0.1" {
		t.Fatalf("expected only loopback to answer, got %v", found)
	}
}
