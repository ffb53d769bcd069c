package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/watchdog/internal/models"
)

type slowBackend struct {
	active  int32
	maxSeen int32
	delay   time.Duration
}

func (b *slowBackend) Next(ctx context.Context, instruction string, _ []models.Message, _ []models.ToolDescriptor) (*models.AssistantMessage, error) {
	n := atomic.AddInt32(&b.active, 1)
	defer atomic.AddInt32(&b.active, -1)
	for {
		m := atomic.LoadInt32(&b.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&b.maxSeen, m, n) {
			break
		}
	}
	select {
	case <-time.After(b.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return models.NewAssistantMessage("answer for " + instruction), nil
}

func TestSessionAsk(t *testing.T) {
	backend := &scriptedBackend{replies: []func() *models.AssistantMessage{answer("hello")}}
	o := newTestOrchestrator(t, backend, Options{})
	s := NewSession(o, 2, nil)

	res, err := s.Ask(context.Background(), "alice", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.FinalAnswer)

	_, err = s.Ask(context.Background(), "alice", "again", nil)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Conversation("alice").Transcript.Len())
	assert.Equal(t, []string{"alice"}, s.Container().Users())
	assert.Contains(t, backend.instructions[0], "Portfolio Manager for alice")

	_, err = s.Ask(context.Background(), "", "hi", nil)
	assert.Error(t, err)
}

func TestSessionBoundsConcurrentTurns(t *testing.T) {
	backend := &slowBackend{delay: 20 * time.Millisecond}
	o := newTestOrchestrator(t, backend, Options{})
	s := NewSession(o, 2, func(user string) string { return user })

	var wg sync.WaitGroup
	for _, user := range []string{"a", "b", "c", "d", "e", "f"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Ask(context.Background(), user, "hi", nil)
			assert.NoError(t, err)
			assert.Equal(t, "answer for "+user, res.FinalAnswer)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&backend.maxSeen), int32(2))
}

func TestSessionSerialisesUser(t *testing.T) {
	backend := &slowBackend{delay: 10 * time.Millisecond}
	o := newTestOrchestrator(t, backend, Options{})
	s := NewSession(o, 8, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ask(context.Background(), "alice", "hi", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.maxSeen))
	assert.Equal(t, 8, s.Conversation("alice").Transcript.Len())
}

func TestSessionAskCancelledWhileWaiting(t *testing.T) {
	backend := &slowBackend{delay: 200 * time.Millisecond}
	o := newTestOrchestrator(t, backend, Options{})
	s := NewSession(o, 1, nil)

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = s.Ask(context.Background(), "alice", "slow", nil)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Ask(ctx, "alice", "blocked", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildInstruction(t *testing.T) {
	text := BuildInstruction("bob")
	assert.Contains(t, text, "Portfolio Manager for bob")
	assert.Contains(t, text, `username "bob"`)
	assert.Contains(t, text, "send_alert")
}
