package radio

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/openwearables/pulse/internal/record"
)

// Frame layout on the data channel: [fragmentIndex:1][fragmentCount:1] then
// up to MaxPayload bytes of the serialized batch.
const (
	headerSize = 2
	// MaxPayload is the per-frame payload cap imposed by the link MTU.
	MaxPayload = 500
	// MaxFragments follows from the single count byte.
	MaxFragments = 255
)

// BatchCodec serializes batches for the radio link. Payloads are zstd
// compressed before fragmenting so most batches fit a handful of frames.
type BatchCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewBatchCodec() (*BatchCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &BatchCodec{enc: enc, dec: dec}, nil
}

// Encode serializes and compresses a batch into a radio payload.
func (c *BatchCodec) Encode(batch record.Batch) ([]byte, error) {
	raw, err := sonic.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return c.enc.EncodeAll(raw, nil), nil
}

// Decode reverses Encode.
func (c *BatchCodec) Decode(payload []byte) (record.Batch, error) {
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return record.Batch{}, fmt.Errorf("zstd decode: %w", err)
	}
	var batch record.Batch
	if err := sonic.Unmarshal(raw, &batch); err != nil {
		return record.Batch{}, fmt.Errorf("unmarshal batch: %w", err)
	}
	return batch, nil
}

// Fragment splits payload into ordered frames of at most maxPayload bytes
// each, tagged with (fragmentIndex, fragmentCount).
func Fragment(payload []byte, maxPayload int) ([][]byte, error) {
	if maxPayload <= 0 || maxPayload > MaxPayload {
		maxPayload = MaxPayload
	}

	count := (len(payload) + maxPayload - 1) / maxPayload
	if count == 0 {
		count = 1
	}
	if count > MaxFragments {
		return nil, fmt.Errorf("payload of %d bytes needs %d fragments, max is %d", len(payload), count, MaxFragments)
	}

	frames := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(payload) {
			end = len(payload)
		}

		frame := make([]byte, headerSize+end-start)
		frame[0] = byte(i)
		frame[1] = byte(count)
		copy(frame[headerSize:], payload[start:end])
		frames = append(frames, frame)
	}
	return frames, nil
}

// Reassembler buffers frames keyed by fragment index until all fragments of
// a transfer are present. Frames may arrive out of order.
type Reassembler struct {
	count  int
	frames map[int][]byte
}

func NewReassembler() *Reassembler {
	return &Reassembler{frames: make(map[int][]byte)}
}

// Add consumes one frame and reports whether the transfer is complete.
func (r *Reassembler) Add(frame []byte) (bool, error) {
	if len(frame) < headerSize {
		return false, fmt.Errorf("frame too short: %d bytes", len(frame))
	}

	index := int(frame[0])
	count := int(frame[1])
	if count == 0 {
		return false, fmt.Errorf("frame carries zero fragment count")
	}
	if index >= count {
		return false, fmt.Errorf("fragment index %d out of range for count %d", index, count)
	}
	if r.count != 0 && r.count != count {
		return false, fmt.Errorf("fragment count changed mid-transfer: %d != %d", count, r.count)
	}

	r.count = count
	payload := make([]byte, len(frame)-headerSize)
	copy(payload, frame[headerSize:])
	r.frames[index] = payload

	return len(r.frames) == r.count, nil
}

// Payload concatenates the buffered fragments in index order. Only valid
// once Add has reported completion.
func (r *Reassembler) Payload() ([]byte, error) {
	if r.count == 0 || len(r.frames) != r.count {
		return nil, fmt.Errorf("transfer incomplete: %d/%d fragments", len(r.frames), r.count)
	}

	var out []byte
	for i := 0; i < r.count; i++ {
		out = append(out, r.frames[i]...)
	}
	return out, nil
}

// Reset clears the buffer for the next transfer.
func (r *Reassembler) Reset() {
	r.count = 0
	r.frames = make(map[int][]byte)
}
