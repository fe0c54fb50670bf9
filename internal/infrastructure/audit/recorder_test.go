package audit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher 收集发布的事件，可选阻塞以模拟慢消费
type fakePublisher struct {
	mu      sync.Mutex
	events  []Event
	block   chan struct{}
	failErr error
}

func (f *fakePublisher) Publish(_ context.Context, event Event) (string, error) {
	if f.block != nil {
		<-f.block
	}
	if f.failErr != nil {
		return "", f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return event.ID, nil
}

func (f *fakePublisher) published() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func TestNewEventPreviewTruncation(t *testing.T) {
	long := strings.Repeat("é", 250)
	event := NewEvent("question", long, "gemini", "chat_generation", "req-1", 3)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "question", event.Question)
	assert.Equal(t, 100, len([]rune(event.AnswerPreview)))
	assert.Equal(t, "gemini", event.LLMProvider)
	assert.Equal(t, "chat_generation", event.Outcome)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, 3, event.ContextChunksCount)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestNewEventShortAnswerKeptIntact(t *testing.T) {
	event := NewEvent("q", "réponse courte", "openai", "rag_generation", "", 1)
	assert.Equal(t, "réponse courte", event.AnswerPreview)
}

func TestRecorderPublishesEvents(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRecorder(pub, 16)

	r.Record(NewEvent("q1", "a1", "gemini", "chat_generation", "", 1))
	r.Record(NewEvent("q2", "a2", "gemini", "chat_generation", "", 1))
	r.Close()

	events := pub.published()
	require.Len(t, events, 2)
	assert.Equal(t, "q1", events[0].Question)
	assert.Equal(t, "q2", events[1].Question)
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	r := NewRecorder(pub, 1)

	// 第一条事件占住发送协程，第二条占满队列，其后全部被丢弃
	for i := 0; i < 10; i++ {
		r.Record(NewEvent("q", "a", "gemini", "chat_generation", "", 1))
	}

	close(pub.block)
	r.Close()

	assert.LessOrEqual(t, len(pub.published()), 3)
}

func TestRecorderCloseFlushesQueue(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRecorder(pub, 64)

	for i := 0; i < 20; i++ {
		r.Record(NewEvent("q", "a", "gemini", "chat_generation", "", 1))
	}
	r.Close()

	assert.Len(t, pub.published(), 20)
}

func TestRecorderCloseIdempotent(t *testing.T) {
	r := NewRecorder(&fakePublisher{}, 4)
	r.Close()
	r.Close()
}

func TestRecorderPublishErrorDoesNotBlock(t *testing.T) {
	pub := &fakePublisher{failErr: assert.AnError}
	r := NewRecorder(pub, 4)

	r.Record(NewEvent("q", "a", "gemini", "chat_generation", "", 1))

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder close blocked on publish error")
	}
}
