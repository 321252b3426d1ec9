package radio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/openwearables/pulse/internal/record"
	"github.com/openwearables/pulse/internal/syncstate"
	"github.com/openwearables/pulse/internal/transport"
)

// fakeLink is an in-memory Link for exercising the client state machine and
// framing without a radio stack.
type fakeLink struct {
	devices    []Device
	scanErr    error
	connectErr error

	written [][]byte
	inbound [][]byte
	state   []byte

	events chan LinkEvent
}

func newFakeLink() *fakeLink {
	return &fakeLink{events: make(chan LinkEvent, 4)}
}

func (f *fakeLink) Scan(ctx context.Context) ([]Device, error) {
	return f.devices, f.scanErr
}

func (f *fakeLink) Connect(ctx context.Context, dev Device) error { return f.connectErr }
func (f *fakeLink) Disconnect() error                             { return nil }

func (f *fakeLink) WriteFrame(ctx context.Context, frame []byte) error {
	buf := make([]byte, len(frame))
	copy(buf, frame)
	f.written = append(f.written, buf)
	return nil
}

func (f *fakeLink) ReadFrame(ctx context.Context) ([]byte, error) {
	if len(f.inbound) == 0 {
		return nil, errors.New("no frames queued")
	}
	frame := f.inbound[0]
	f.inbound = f.inbound[1:]
	return frame, nil
}

func (f *fakeLink) ReadState(ctx context.Context) ([]byte, error) {
	if f.state == nil {
		return nil, errors.New("no state published")
	}
	return f.state, nil
}

func (f *fakeLink) WriteState(ctx context.Context, data []byte) error {
	f.state = data
	return nil
}

func (f *fakeLink) Events() <-chan LinkEvent { return f.events }

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.FramePacing = time.Millisecond
	cfg.ReadTimeout = time.Second
	cfg.ScanTimeout = time.Second
	return cfg
}

func connect(t *testing.T, c *Client) {
	t.Helper()
	if err := c.Connect(context.Background(), Device{ID: "dev-1", Name: "watch"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestClientConnectLifecycle(t *testing.T) {
	link := newFakeLink()
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if c.State() != Disconnected {
		t.Fatalf("fresh client should be disconnected, got %s", c.State())
	}
	if c.Connected() || c.TestReachable(context.Background()) {
		t.Fatalf("fresh client should not be reachable")
	}

	connect(t, c)
	if c.State() != Connected {
		t.Fatalf("state after connect = %s", c.State())
	}
	if !c.TestReachable(context.Background()) {
		t.Fatalf("connected client should be reachable")
	}

	// The transitional states must have been published in order.
	want := []ConnState{Connecting, ServiceDiscovery, Ready, Connected}
	for _, expected := range want {
		select {
		case got := <-c.StateChanges():
			if got != expected {
				t.Fatalf("state change %s, want %s", got, expected)
			}
		default:
			t.Fatalf("missing state change %s", expected)
		}
	}

	if err := c.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if c.Connected() {
		t.Fatalf("client still connected after disconnect")
	}
}

func TestClientConnectFailure(t *testing.T) {
	link := newFakeLink()
	link.connectErr = errors.New("pairing rejected")
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = c.Connect(context.Background(), Device{ID: "dev-1"})
	if err == nil {
		t.Fatalf("expected connect error")
	}
	if transport.KindOf(err) != transport.KindNetwork {
		t.Fatalf("connect failure should be a network error, got %v", transport.KindOf(err))
	}
	if c.State() != Disconnected {
		t.Fatalf("failed connect should return to disconnected, got %s", c.State())
	}
	if c.LastError() == nil {
		t.Fatalf("last error should be recorded")
	}
}

func TestClientScan(t *testing.T) {
	link := newFakeLink()
	link.devices = []Device{{ID: "dev-1", Name: "watch", RSSI: -40}}
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	devices, err := c.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "dev-1" {
		t.Fatalf("unexpected scan result: %+v", devices)
	}
	if c.State() != Disconnected {
		t.Fatalf("scan should end back at disconnected, got %s", c.State())
	}
}

func TestClientSendFramesBatch(t *testing.T) {
	link := newFakeLink()
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	connect(t, c)

	batch := record.Batch{
		ID: "b1",
		HeartRate: []record.HeartRate{
			{ID: "h1", Timestamp: time.Unix(10, 0).UTC(), ValueBPM: 72},
		},
	}
	if err := c.Send(context.Background(), batch); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(link.written) == 0 {
		t.Fatalf("no frames written")
	}

	// The written frames must reassemble back into the original batch.
	asm := NewReassembler()
	for _, frame := range link.written {
		if _, err := asm.Add(frame); err != nil {
			t.Fatalf("reassemble: %v", err)
		}
	}
	payload, err := asm.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	got, err := c.codec.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "b1" || len(got.HeartRate) != 1 || got.HeartRate[0].ID != "h1" {
		t.Fatalf("round-tripped batch differs: %+v", got)
	}
}

func TestClientSendRequiresConnection(t *testing.T) {
	c, err := NewClient(testConfig(), newFakeLink())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	err = c.Send(context.Background(), record.Batch{ID: "b1"})
	if transport.KindOf(err) != transport.KindUnavailable {
		t.Fatalf("send while disconnected should be unavailable, got %v", err)
	}
}

func TestClientFetchFiltersSince(t *testing.T) {
	link := newFakeLink()
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	connect(t, c)

	batch := record.Batch{
		ID: "inbound",
		HeartRate: []record.HeartRate{
			{ID: "old", Timestamp: time.Unix(10, 0).UTC()},
			{ID: "new", Timestamp: time.Unix(20, 0).UTC()},
		},
	}
	payload, err := c.codec.Encode(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	link.inbound, err = Fragment(payload, MaxPayload)
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}

	got, err := c.Fetch(context.Background(), time.Unix(10, 0).UTC())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got.HeartRate) != 1 || got.HeartRate[0].ID != "new" {
		t.Fatalf("expected only the newer record, got %+v", got.HeartRate)
	}
}

func TestClientPeerStateRoundTrip(t *testing.T) {
	link := newFakeLink()
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	connect(t, c)

	state := syncstate.New()
	state.AdvanceHeartRate(time.Unix(500, 0).UTC())
	if err := c.PushState(context.Background(), state); err != nil {
		t.Fatalf("push state: %v", err)
	}

	peer, err := c.PeerState(context.Background())
	if err != nil {
		t.Fatalf("peer state: %v", err)
	}
	if !peer.LastHeartRateSync.Equal(state.LastHeartRateSync) {
		t.Fatalf("peer watermark %v, want %v", peer.LastHeartRateSync, state.LastHeartRateSync)
	}
}

func TestClientPeerStateCodecError(t *testing.T) {
	link := newFakeLink()
	link.state = []byte("{broken")
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	connect(t, c)

	_, err = c.PeerState(context.Background())
	if transport.KindOf(err) != transport.KindCodec {
		t.Fatalf("broken state payload should be a codec error, got %v", err)
	}
}

func TestClientWatchEventsDrop(t *testing.T) {
	link := newFakeLink()
	c, err := NewClient(testConfig(), link)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	connect(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.WatchEvents(ctx)

	dropErr := errors.New("peer went away")
	link.events <- LinkEvent{State: Disconnected, Err: dropErr}

	deadline := time.After(time.Second)
	for c.Connected() {
		select {
		case <-deadline:
			t.Fatalf("client never observed the drop")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !errors.Is(c.LastError(), dropErr) {
		t.Fatalf("last error = %v, want %v", c.LastError(), dropErr)
	}
}

func TestStateJSONShape(t *testing.T) {
	// The state channel payload must stay small enough to skip fragmenting.
	state := syncstate.New()
	state.Touch(time.Now())
	data, err := sonic.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) > MaxPayload {
		t.Fatalf("serialized state is %d bytes, exceeds one frame", len(data))
	}
}
