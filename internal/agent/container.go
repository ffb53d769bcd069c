package agent

import (
	"context"
	"slices"
	"sync"

	"github.com/run-bigpig/watchdog/internal/models"
)

// Conversation one user's transcript. Only one turn may own it at a time.
type Conversation struct {
	User        string
	Instruction string
	Transcript  *models.Transcript
	lock        chan struct{}
}

func newConversation(user, instruction string) *Conversation {
	return &Conversation{
		User:        user,
		Instruction: instruction,
		Transcript:  models.NewTranscript(),
		lock:        make(chan struct{}, 1),
	}
}

// acquire takes the single-writer lock or gives up when ctx is done
func (c *Conversation) acquire(ctx context.Context) error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conversation) release() {
	<-c.lock
}

// Container conversations keyed by user
type Container struct {
	conversations map[string]*Conversation
	mu            sync.RWMutex
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{
		conversations: make(map[string]*Conversation),
	}
}

// GetOrCreate returns the user's conversation, creating it with the given
// instruction on first use
func (c *Container) GetOrCreate(user string, instruction func(user string) string) *Conversation {
	c.mu.RLock()
	conv, ok := c.conversations[user]
	c.mu.RUnlock()
	if ok {
		return conv
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if conv, ok := c.conversations[user]; ok {
		return conv
	}
	conv = newConversation(user, instruction(user))
	c.conversations[user] = conv
	return conv
}

// Get returns an existing conversation or nil
func (c *Container) Get(user string) *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversations[user]
}

// Reset drops a user's conversation
func (c *Container) Reset(user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conversations, user)
}

// Users sorted list of users with a conversation
func (c *Container) Users() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.conversations))
	for user := range c.conversations {
		result = append(result, user)
	}
	slices.Sort(result)
	return result
}
