package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/metrics"
)

// fakeSource yields a fixed number of frames, then io.EOF.
type fakeSource struct {
	rate    int
	frames  int
	readErr error
	delay   time.Duration

	mu     sync.Mutex
	reads  int
	closed bool
}

func (s *fakeSource) SampleRate() int { return s.rate }

func (s *fakeSource) Read() ([]byte, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.frames >= 0 && s.reads >= s.frames {
		return nil, io.EOF
	}
	s.reads++
	return make([]byte, 2048), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeSender records frames sent.
type fakeSender struct {
	mu      sync.Mutex
	frames  int
	sendErr error
}

func (s *fakeSender) SendAudio(ctx context.Context, audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.frames++
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func newTestProducer() *Producer {
	return NewProducer(metrics.NewMetrics(nil), zerolog.Nop())
}

func TestProducer_SendsUntilEOF(t *testing.T) {
	src := &fakeSource{rate: 16000, frames: 5}
	sender := &fakeSender{}

	if err := newTestProducer().Run(context.Background(), src, sender); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.count() != 5 {
		t.Errorf("expected 5 frames sent, got %d", sender.count())
	}
	if !src.isClosed() {
		t.Error("expected source closed on exit")
	}
}

func TestProducer_StopsOnCancel(t *testing.T) {
	src := &fakeSource{rate: 16000, frames: -1, delay: 5 * time.Millisecond}
	sender := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- newTestProducer().Run(ctx, src, sender) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after cancel")
	}

	sent := sender.count()
	if sent == 0 {
		t.Error("expected some frames before cancel")
	}
	time.Sleep(20 * time.Millisecond)
	if sender.count() != sent {
		t.Error("frames sent after producer returned")
	}
	if !src.isClosed() {
		t.Error("expected source closed on exit")
	}
}

func TestProducer_ReadError(t *testing.T) {
	readErr := errors.New("device unplugged")
	src := &fakeSource{rate: 16000, readErr: readErr}

	err := newTestProducer().Run(context.Background(), src, &fakeSender{})
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	if !src.isClosed() {
		t.Error("expected source closed on exit")
	}
}

func TestProducer_SendError(t *testing.T) {
	sendErr := errors.New("socket closed")
	src := &fakeSource{rate: 16000, frames: -1}

	err := newTestProducer().Run(context.Background(), src, &fakeSender{sendErr: sendErr})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestProducer_CancelledBeforeStart(t *testing.T) {
	src := &fakeSource{rate: 16000, frames: -1}
	sender := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := newTestProducer().Run(ctx, src, sender); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.count() != 0 {
		t.Errorf("expected no frames, got %d", sender.count())
	}
}

// wavBytes builds a canonical 44-byte header followed by samples.
func wavBytes(format, channels uint16, rate uint32, bits uint16, samples int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(samples * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, format)
	binary.Write(&buf, binary.LittleEndian, channels)
	binary.Write(&buf, binary.LittleEndian, rate)
	binary.Write(&buf, binary.LittleEndian, rate*uint32(channels)*uint32(bits/8))
	binary.Write(&buf, binary.LittleEndian, channels*bits/8)
	binary.Write(&buf, binary.LittleEndian, bits)
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func TestParseWAVHeader(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"pcm mono 16-bit", wavBytes(1, 1, 16000, 16, 10), false},
		{"stereo", wavBytes(1, 2, 16000, 16, 10), true},
		{"8-bit", wavBytes(1, 1, 8000, 8, 10), true},
		{"not pcm", wavBytes(3, 1, 16000, 16, 10), true},
		{"not riff", append([]byte("JUNK"), wavBytes(1, 1, 16000, 16, 10)[4:]...), true},
		{"truncated", []byte("RIFF"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWAVHeader(bytes.NewReader(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWAVSource_Frames(t *testing.T) {
	// 2.5 frames of 4 samples
	data := wavBytes(1, 1, 44100, 16, 10)
	src, err := NewWAVSource(io.NopCloser(bytes.NewReader(data)), 4, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.SampleRate() != 44100 {
		t.Errorf("expected rate 44100, got %d", src.SampleRate())
	}

	var sizes []int
	for {
		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sizes = append(sizes, len(frame))
	}

	want := []int{8, 8, 4}
	if len(sizes) != len(want) {
		t.Fatalf("expected frame sizes %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("frame %d: expected %d bytes, got %d", i, want[i], sizes[i])
		}
	}
}

func TestWAVSource_RealtimePacing(t *testing.T) {
	// 100 samples per frame at 8kHz is 12.5ms per frame.
	data := wavBytes(1, 1, 8000, 16, 400)
	src, err := NewWAVSource(io.NopCloser(bytes.NewReader(data)), 100, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	for i := 0; i < 4; i++ {
		if _, err := src.Read(); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected paced reads, finished in %v", elapsed)
	}
}
