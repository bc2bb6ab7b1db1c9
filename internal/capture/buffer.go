package capture

import (
	"context"
	"io"
	"sync"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

// BufferStats is a point-in-time snapshot of buffer counters
type BufferStats struct {
	ChunksPushed  uint64 `json:"chunks_pushed"`
	BytesPushed   uint64 `json:"bytes_pushed"`
	BlocksYielded uint64 `json:"blocks_yielded"`
	Dropped       uint64 `json:"dropped_after_close"`
	Depth         int    `json:"depth"`
	Closed        bool   `json:"closed"`
}

// Buffer hands audio chunks from the driver callback to a single consumer.
//
// Push never waits for the consumer and the queue is unbounded, so the
// driver thread is never stalled by a slow recognizer. Close appends the
// end-of-stream marker; chunks queued before Close are still delivered.
type Buffer struct {
	mu     sync.Mutex
	queue  []entities.AudioChunk
	closed bool
	seq    uint64

	// notify holds at most one pending wake-up for the consumer
	notify chan struct{}

	stats BufferStats
}

// NewBuffer creates an empty, open buffer
func NewBuffer() *Buffer {
	return &Buffer{
		notify: make(chan struct{}, 1),
	}
}

// Push copies data into the queue. It reports false if the buffer is
// already closed and the chunk was discarded.
func (b *Buffer) Push(data []byte) bool {
	chunk := make([]byte, len(data))
	copy(chunk, data)

	b.mu.Lock()
	if b.closed {
		b.stats.Dropped++
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, entities.AudioChunk{Seq: b.seq, Data: chunk})
	b.seq++
	b.stats.ChunksPushed++
	b.stats.BytesPushed += uint64(len(chunk))
	b.mu.Unlock()

	b.wake()
	return true
}

// Close marks the end of the stream. Calling it more than once is a no-op.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.wake()
}

func (b *Buffer) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next waits for at least one chunk, then drains everything queued so far
// and returns it as one contiguous block. After the end marker has been
// reached and the queue is empty it returns io.EOF.
func (b *Buffer) Next(ctx context.Context) ([]byte, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			chunks := b.queue
			b.queue = nil
			b.stats.BlocksYielded++
			b.mu.Unlock()
			return join(chunks), nil
		}
		if b.closed {
			b.mu.Unlock()
			return nil, io.EOF
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.notify:
		}
	}
}

// Stream adapts Next into a channel of coalesced blocks. The channel is
// closed when the buffer reaches its end marker or ctx is cancelled.
func (b *Buffer) Stream(ctx context.Context) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			block, err := b.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- block:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Stats returns a snapshot of the buffer counters
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.Depth = len(b.queue)
	s.Closed = b.closed
	return s
}

func join(chunks []entities.AudioChunk) []byte {
	if len(chunks) == 1 {
		return chunks[0].Data
	}
	size := 0
	for _, c := range chunks {
		size += len(c.Data)
	}
	block := make([]byte, 0, size)
	for _, c := range chunks {
		block = append(block, c.Data...)
	}
	return block
}
