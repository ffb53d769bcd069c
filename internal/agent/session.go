package agent

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentTurns turn pool size
const DefaultMaxConcurrentTurns = 4

// Session serves turns for many users over one orchestrator. Each user's
// turns are serialised; turns across users share a bounded pool.
type Session struct {
	orchestrator *Orchestrator
	container    *Container
	pool         *semaphore.Weighted
	instruction  func(user string) string
}

// NewSession creates a session. instruction builds the system instruction
// for a new conversation, nil uses BuildInstruction.
func NewSession(o *Orchestrator, maxConcurrentTurns int64, instruction func(user string) string) *Session {
	if maxConcurrentTurns <= 0 {
		maxConcurrentTurns = DefaultMaxConcurrentTurns
	}
	if instruction == nil {
		instruction = BuildInstruction
	}
	return &Session{
		orchestrator: o,
		container:    NewContainer(),
		pool:         semaphore.NewWeighted(maxConcurrentTurns),
		instruction:  instruction,
	}
}

// Conversation returns the user's conversation, creating it if needed
func (s *Session) Conversation(user string) *Conversation {
	return s.container.GetOrCreate(user, s.instruction)
}

// Container all conversations
func (s *Session) Container() *Container {
	return s.container
}

// Registry the tool registry
func (s *Session) Registry() *ToolRegistry {
	return s.orchestrator.Registry()
}

// Ask runs one turn for user and waits for it to finish
func (s *Session) Ask(ctx context.Context, user, input string, progress ProgressCallback) (*TurnResult, error) {
	if user == "" {
		return nil, goerr.New("user is required")
	}
	conv := s.Conversation(user)

	if err := conv.acquire(ctx); err != nil {
		return nil, goerr.Wrap(err, "waiting for conversation", goerr.V("user", user))
	}
	defer conv.release()

	if err := s.pool.Acquire(ctx, 1); err != nil {
		return nil, goerr.Wrap(err, "waiting for turn slot", goerr.V("user", user))
	}
	defer s.pool.Release(1)

	log.Debug("turn for %s, transcript has %d messages", user, conv.Transcript.Len())
	return s.orchestrator.WithInstruction(conv.Instruction).RunTurn(ctx, conv.Transcript, input, progress)
}

// Close releases the tool providers
func (s *Session) Close() error {
	return s.orchestrator.Registry().Close()
}
