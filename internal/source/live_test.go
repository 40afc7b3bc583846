package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeDevice is a scripted capture device for tests.
type fakeDevice struct {
	reads  chan []byte
	closed atomic.Bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{reads: make(chan []byte, 16)}
}

func (d *fakeDevice) Read(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-d.reads:
		if !ok {
			return nil, ErrEndOfStream
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDevice) Close() error {
	d.closed.Store(true)
	return nil
}

func TestLiveReadsFromDevice(t *testing.T) {
	dev := newFakeDevice()
	src, err := NewLive(dev, testMetadata(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewLive failed: %v", err)
	}
	defer src.Stop()

	dev.reads <- []byte{1, 2, 3}

	chunk, err := src.ReadChunk(context.Background())
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if chunk.Sequence != 0 {
		t.Errorf("Expected sequence 0, got %d", chunk.Sequence)
	}
	if len(chunk.Data) != 3 {
		t.Errorf("Expected 3 bytes, got %d", len(chunk.Data))
	}
}

func TestLiveStopUnblocksRead(t *testing.T) {
	dev := newFakeDevice()
	src, err := NewLive(dev, testMetadata(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewLive failed: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := src.ReadChunk(context.Background())
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	src.Stop()

	select {
	case err := <-result:
		if !errors.Is(err, ErrEndOfStream) {
			t.Errorf("Expected ErrEndOfStream after stop, got %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("ReadChunk did not return after Stop")
	}

	if !dev.closed.Load() {
		t.Error("Expected capture device to be closed on stop")
	}
	if !src.Complete() {
		t.Error("Expected Complete() to be true after stop")
	}
}

func TestLiveDeviceExhaustion(t *testing.T) {
	dev := newFakeDevice()
	src, err := NewLive(dev, testMetadata(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewLive failed: %v", err)
	}

	close(dev.reads)

	if _, err := src.ReadChunk(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream on exhausted device, got %v", err)
	}
	if !src.Complete() {
		t.Error("Expected Complete() after device exhaustion")
	}
	if !dev.closed.Load() {
		t.Error("Expected device to be closed after exhaustion")
	}
}

func TestLiveStopIdempotent(t *testing.T) {
	dev := newFakeDevice()
	src, err := NewLive(dev, testMetadata(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewLive failed: %v", err)
	}

	src.Stop()
	src.Stop()

	if _, err := src.ReadChunk(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Expected ErrEndOfStream after stop, got %v", err)
	}
}
