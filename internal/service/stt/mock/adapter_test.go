package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"live-transcription-service/internal/service/stt"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []finalResult
	errors   []error
	closed   int
}

type finalResult struct {
	text       string
	confidence float64
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, finalResult{text, confidence})
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) OnClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *testCallback) getPartials() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.partials...)
}

func (c *testCallback) getFinals() []finalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]finalResult{}, c.finals...)
}

func newStarted(t *testing.T, script []SimulatedUtterance) (*Adapter, *testCallback) {
	t.Helper()
	adapter := NewWithUtterances(script)
	adapter.Delay = 0
	cb := &testCallback{}
	if err := adapter.Start(context.Background(), stt.StartOptions{SampleRateHz: 16000}, cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return adapter, cb
}

var testScript = []SimulatedUtterance{
	{Partials: []string{"test", "test one"}, Final: "test one", Confidence: 0.9},
}

func TestAdapter_Name(t *testing.T) {
	if New().Name() != "mock" {
		t.Errorf("expected name 'mock', got %q", New().Name())
	}
}

func TestAdapter_PartialsThenFinal(t *testing.T) {
	adapter, cb := newStarted(t, testScript)

	for i := 0; i < 3; i++ {
		if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	adapter.Close()

	partials := cb.getPartials()
	if len(partials) != 2 || partials[0] != "test" || partials[1] != "test one" {
		t.Errorf("unexpected partials %v", partials)
	}
	finals := cb.getFinals()
	if len(finals) != 1 || finals[0].text != "test one" {
		t.Errorf("expected exactly one final 'test one', got %v", finals)
	}
	if finals[0].confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", finals[0].confidence)
	}
}

func TestAdapter_CloseFinalizesUtteranceInProgress(t *testing.T) {
	adapter, cb := newStarted(t, testScript)

	adapter.SendAudio(context.Background(), []byte("audio"))
	adapter.Close()

	finals := cb.getFinals()
	if len(finals) != 1 {
		t.Errorf("expected 1 final on close, got %d", len(finals))
	}
}

func TestAdapter_CloseWithoutAudioSendsNoFinal(t *testing.T) {
	adapter, cb := newStarted(t, testScript)
	adapter.Close()

	if len(cb.getFinals()) != 0 {
		t.Errorf("expected no final, got %v", cb.getFinals())
	}
}

func TestAdapter_CloseDeliversOnClosedOnce(t *testing.T) {
	adapter, cb := newStarted(t, testScript)

	adapter.Close()
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.closed != 1 {
		t.Errorf("expected OnClosed once, got %d", cb.closed)
	}
}

func TestAdapter_SendAudio_AfterClose(t *testing.T) {
	adapter, _ := newStarted(t, testScript)
	adapter.Close()

	err := adapter.SendAudio(context.Background(), []byte("audio"))
	if !errors.Is(err, stt.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestAdapter_SendAudio_BeforeStart(t *testing.T) {
	adapter := New()

	err := adapter.SendAudio(context.Background(), []byte("audio"))
	if !errors.Is(err, stt.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdapter_CyclesThroughUtterances(t *testing.T) {
	script := []SimulatedUtterance{
		{Partials: []string{"a"}, Final: "alpha", Confidence: 0.9},
		{Partials: []string{"b"}, Final: "bravo", Confidence: 0.9},
	}
	adapter, cb := newStarted(t, script)

	for i := 0; i < 6; i++ {
		adapter.SendAudio(context.Background(), []byte("audio"))
	}
	adapter.Close()

	finals := cb.getFinals()
	want := []string{"alpha", "bravo", "alpha"}
	if len(finals) != len(want) {
		t.Fatalf("expected %d finals, got %v", len(want), finals)
	}
	for i, w := range want {
		if finals[i].text != w {
			t.Errorf("final %d: expected %q, got %q", i, w, finals[i].text)
		}
	}
	if adapter.FramesReceived() != 6 {
		t.Errorf("expected 6 frames, got %d", adapter.FramesReceived())
	}
}

func TestDefaultUtterances(t *testing.T) {
	if len(DefaultUtterances) == 0 {
		t.Fatal("expected default utterances")
	}

	for i, utt := range DefaultUtterances {
		if len(utt.Partials) == 0 {
			t.Errorf("utterance %d has no partials", i)
		}
		if utt.Final == "" {
			t.Errorf("utterance %d has empty final", i)
		}
		if utt.Confidence <= 0 || utt.Confidence > 1 {
			t.Errorf("utterance %d has invalid confidence %f", i, utt.Confidence)
		}
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	adapter, _ := newStarted(t, DefaultUtterances)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				adapter.SendAudio(context.Background(), []byte("audio"))
			}
		}()
	}

	wg.Wait()
	adapter.Close()

	if adapter.FramesReceived() != 50 {
		t.Errorf("expected 50 frames, got %d", adapter.FramesReceived())
	}
}
