package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestBufferCoalescesQueuedChunks(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 3; i++ {
		b.Push(bytes.Repeat([]byte{byte(i)}, 10))
	}
	b.Close()

	ctx := context.Background()
	block, err := b.Next(ctx)
	if err != nil {
		t.Fatalf("Expected a block, got error: %v", err)
	}
	if len(block) != 30 {
		t.Fatalf("Expected 30 bytes, got %d", len(block))
	}
	for i := 0; i < 3; i++ {
		for _, v := range block[i*10 : (i+1)*10] {
			if v != byte(i) {
				t.Fatalf("Expected chunk %d in position %d, got byte %d", i, i, v)
			}
		}
	}

	if _, err := b.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF after end marker, got %v", err)
	}
}

func TestBufferNextBlocksUntilPush(t *testing.T) {
	b := NewBuffer()
	got := make(chan []byte, 1)

	go func() {
		block, err := b.Next(context.Background())
		if err != nil {
			t.Errorf("Next returned error: %v", err)
		}
		got <- block
	}()

	select {
	case <-got:
		t.Fatal("Next returned before any chunk was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	b.Push([]byte("abc"))

	select {
	case block := <-got:
		if string(block) != "abc" {
			t.Errorf("Expected abc, got %q", block)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up after Push")
	}
}

func TestBufferCloseWakesWaitingConsumer(t *testing.T) {
	b := NewBuffer()
	done := make(chan error, 1)
	go func() {
		_, err := b.Next(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Expected io.EOF, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the consumer")
	}
}

func TestBufferNextHonorsContext(t *testing.T) {
	b := NewBuffer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestBufferPushAfterCloseIsDropped(t *testing.T) {
	b := NewBuffer()
	b.Push([]byte{1})
	b.Close()
	b.Close()

	if b.Push([]byte{2}) {
		t.Error("Expected Push after Close to report false")
	}

	stats := b.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Expected 1 dropped chunk, got %d", stats.Dropped)
	}
	if stats.Depth != 1 {
		t.Errorf("Expected queued chunk to survive Close, depth=%d", stats.Depth)
	}
}

func TestBufferPushCopiesData(t *testing.T) {
	b := NewBuffer()
	data := []byte{1, 2, 3}
	b.Push(data)
	data[0] = 9

	block, err := b.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if block[0] != 1 {
		t.Errorf("Expected buffer to hold a copy, got %v", block)
	}
}

func TestBufferStreamPreservesOrder(t *testing.T) {
	b := NewBuffer()
	const chunks = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < chunks; i++ {
			b.Push([]byte{byte(i % 256), byte(i / 256)})
		}
		b.Close()
	}()

	var all []byte
	for block := range b.Stream(context.Background()) {
		all = append(all, block...)
	}
	wg.Wait()

	if len(all) != chunks*2 {
		t.Fatalf("Expected %d bytes, got %d", chunks*2, len(all))
	}
	for i := 0; i < chunks; i++ {
		if all[2*i] != byte(i%256) || all[2*i+1] != byte(i/256) {
			t.Fatalf("Chunk %d out of order", i)
		}
	}

	stats := b.Stats()
	if stats.ChunksPushed != chunks {
		t.Errorf("Expected %d chunks pushed, got %d", chunks, stats.ChunksPushed)
	}
	if stats.BlocksYielded == 0 || stats.BlocksYielded > chunks {
		t.Errorf("Unexpected blocks yielded: %d", stats.BlocksYielded)
	}
}

func TestBufferStreamStopsOnCancel(t *testing.T) {
	b := NewBuffer()
	ctx, cancel := context.WithCancel(context.Background())
	stream := b.Stream(ctx)
	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			t.Error("Expected no data from a cancelled stream")
		}
	case <-time.After(time.Second):
		t.Fatal("Stream was not closed after cancellation")
	}
}
