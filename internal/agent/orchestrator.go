package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xeipuuv/gojsonschema"

	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/metrics"
	"github.com/run-bigpig/watchdog/internal/models"
)

var log = logger.New("Agent")

// Defaults
const (
	DefaultStepBudget     = 5
	DefaultBackendTimeout = 90 * time.Second
	DefaultToolTimeout    = 60 * time.Second
)

// Progress event types
const (
	EventTurnStart  = "turn_start"
	EventAssistant  = "assistant"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventTurnDone   = "turn_done"
)

// Backend produces the next assistant message for a transcript
type Backend interface {
	Next(ctx context.Context, instruction string, messages []models.Message, tools []models.ToolDescriptor) (*models.AssistantMessage, error)
}

// ProgressEvent fine-grained turn progress for audit and display
type ProgressEvent struct {
	Type      string          `json:"type"`
	Step      int             `json:"step"`
	CallID    string          `json:"callId,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Provider  string          `json:"provider,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"isError,omitempty"`
}

// ProgressCallback receives progress events synchronously
type ProgressCallback func(event ProgressEvent)

// TurnResult outcome of one user turn
type TurnResult struct {
	FinalAnswer string
	// Answered false when the step budget ran out before a final answer
	Answered bool
	Steps    int
}

// Options orchestrator settings; zero values pick the defaults
type Options struct {
	StepBudget     int
	BackendTimeout time.Duration
	BackendRetries int
	RetryBaseDelay time.Duration
	ToolTimeout    time.Duration
	Instruction    string
	Metrics        *metrics.Metrics
}

// Orchestrator runs the reason-act loop over a transcript
type Orchestrator struct {
	backend        Backend
	registry       *ToolRegistry
	stepBudget     int
	backendTimeout time.Duration
	backendRetries int
	retryBaseDelay time.Duration
	toolTimeout    time.Duration
	instruction    string
	metrics        *metrics.Metrics
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(backend Backend, registry *ToolRegistry, opts Options) *Orchestrator {
	if opts.StepBudget <= 0 {
		opts.StepBudget = DefaultStepBudget
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = DefaultBackendTimeout
	}
	if opts.BackendRetries < 0 {
		opts.BackendRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = RetryBaseDelay
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = DefaultToolTimeout
	}
	return &Orchestrator{
		backend:        backend,
		registry:       registry,
		stepBudget:     opts.StepBudget,
		backendTimeout: opts.BackendTimeout,
		backendRetries: opts.BackendRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		toolTimeout:    opts.ToolTimeout,
		instruction:    opts.Instruction,
		metrics:        opts.Metrics,
	}
}

// WithInstruction copy of the orchestrator using another system instruction
func (o *Orchestrator) WithInstruction(instruction string) *Orchestrator {
	c := *o
	c.instruction = instruction
	return &c
}

// Registry the tool registry in use
func (o *Orchestrator) Registry() *ToolRegistry {
	return o.registry
}

// RunTurn appends the user input and loops backend calls and tool calls until
// the backend answers without tools or the step budget is spent. The
// transcript keeps every message appended before an error.
func (o *Orchestrator) RunTurn(ctx context.Context, transcript *models.Transcript, input string, progress ProgressCallback) (*TurnResult, error) {
	emit := func(ev ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	}

	if err := transcript.Append(models.NewUserMessage(input)); err != nil {
		return nil, err
	}
	emit(ProgressEvent{Type: EventTurnStart, Content: input})

	descriptors := o.registry.ListDescriptors()
	result := &TurnResult{}

	for step := 1; step <= o.stepBudget; step++ {
		if err := ctx.Err(); err != nil {
			o.metrics.ObserveTurn(metrics.OutcomeCancelled, result.Steps)
			return result, goerr.Wrap(err, "turn cancelled", goerr.V("step", step))
		}

		reply, err := o.nextMessage(ctx, transcript.Messages(), descriptors)
		result.Steps = step
		if err != nil {
			o.metrics.ObserveTurn(outcomeFor(err), result.Steps)
			return result, err
		}

		o.assignCallIDs(transcript, reply)
		if err := transcript.Append(reply); err != nil {
			o.metrics.ObserveTurn(metrics.OutcomeFailed, result.Steps)
			return result, err
		}
		emit(ProgressEvent{Type: EventAssistant, Step: step, Content: reply.Content})

		if !reply.HasToolCalls() {
			result.FinalAnswer = reply.Content
			result.Answered = true
			o.metrics.ObserveTurn(metrics.OutcomeAnswered, result.Steps)
			emit(ProgressEvent{Type: EventTurnDone, Step: step, Content: reply.Content})
			log.Info("turn answered in %d steps", step)
			return result, nil
		}

		for i, call := range reply.ToolCalls {
			if err := ctx.Err(); err != nil {
				// answer the remaining calls so the transcript stays well formed
				for _, rest := range reply.ToolCalls[i:] {
					_ = transcript.Append(models.NewToolResultMessage(rest.ID, rest.Name, "Error: tool call cancelled", true))
				}
				o.metrics.ObserveTurn(metrics.OutcomeCancelled, result.Steps)
				return result, goerr.Wrap(err, "turn cancelled", goerr.V("step", step), goerr.V("tool", call.Name))
			}

			content, isErr, provider := o.executeCall(ctx, step, call, emit)
			if err := transcript.Append(models.NewToolResultMessage(call.ID, call.Name, content, isErr)); err != nil {
				o.metrics.ObserveTurn(metrics.OutcomeFailed, result.Steps)
				return result, err
			}
			emit(ProgressEvent{
				Type:     EventToolResult,
				Step:     step,
				CallID:   call.ID,
				Tool:     call.Name,
				Provider: provider,
				Content:  content,
				IsError:  isErr,
			})
		}
	}

	log.Warn("step budget of %d exhausted without a final answer", o.stepBudget)
	o.metrics.ObserveTurn(metrics.OutcomeExhausted, result.Steps)
	emit(ProgressEvent{Type: EventTurnDone, Step: result.Steps})
	return result, nil
}

func outcomeFor(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeFailed
}

// nextMessage one backend round trip under timeout and retry
func (o *Orchestrator) nextMessage(ctx context.Context, messages []models.Message, tools []models.ToolDescriptor) (*models.AssistantMessage, error) {
	reply, err := retryRun(ctx, o.backendRetries, o.retryBaseDelay, func() (*models.AssistantMessage, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.backendTimeout)
		defer cancel()
		return o.backend.Next(callCtx, o.instruction, messages, tools)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, goerr.Wrap(ctxErr, "turn cancelled during backend call")
		}
		return nil, goerr.Wrap(ErrBackend, err.Error())
	}
	if reply == nil {
		return nil, goerr.Wrap(ErrBackend, "backend returned no message")
	}
	return reply, nil
}

// assignCallIDs replaces missing or reused call ids with fresh ones
func (o *Orchestrator) assignCallIDs(transcript *models.Transcript, reply *models.AssistantMessage) {
	seen := make(map[string]bool, len(reply.ToolCalls))
	for i := range reply.ToolCalls {
		id := reply.ToolCalls[i].ID
		_, issued := transcript.CallName(id)
		if id == "" || issued || seen[id] {
			reply.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
		seen[reply.ToolCalls[i].ID] = true
	}
}

// executeCall routes and runs one tool call. Failures become error text for
// the transcript rather than turn errors.
func (o *Orchestrator) executeCall(ctx context.Context, step int, call models.ToolCallRequest, emit func(ProgressEvent)) (string, bool, string) {
	start := time.Now()

	provider, desc, err := o.registry.Resolve(call.Name)
	if err != nil {
		emit(ProgressEvent{Type: EventToolCall, Step: step, CallID: call.ID, Tool: call.Name, Arguments: call.Arguments})
		log.Warn("routing failed for %s: %v", call.Name, err)
		o.metrics.ObserveToolCall("", call.Name, metrics.StatusUnknown, time.Since(start))
		return toolErrorText(call.Name, err), true, ""
	}
	emit(ProgressEvent{Type: EventToolCall, Step: step, CallID: call.ID, Tool: call.Name, Provider: desc.Provider, Arguments: call.Arguments})

	args, err := ValidateArguments(desc.InputSchema, call.Arguments)
	if err != nil {
		log.Warn("[%s] %s rejected arguments: %v", desc.Provider, call.Name, err)
		o.metrics.ObserveToolCall(desc.Provider, call.Name, metrics.StatusInvalid, time.Since(start))
		return toolErrorText(call.Name, err), true, desc.Provider
	}

	callCtx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	log.Info("[%s] calling %s", desc.Provider, call.Name)
	out, err := provider.Invoke(callCtx, call.Name, args)
	if err != nil {
		wrapped := goerr.Wrap(ErrToolExecution, err.Error(), goerr.V("tool", call.Name), goerr.V("provider", desc.Provider))
		log.Warn("[%s] %s failed: %v", desc.Provider, call.Name, err)
		o.metrics.ObserveToolCall(desc.Provider, call.Name, metrics.StatusError, time.Since(start))
		return toolErrorText(call.Name, wrapped), true, desc.Provider
	}

	o.metrics.ObserveToolCall(desc.Provider, call.Name, metrics.StatusOK, time.Since(start))
	return out, false, desc.Provider
}

func toolErrorText(tool string, err error) string {
	return fmt.Sprintf("Error calling %s: %v", tool, err)
}

// ValidateArguments checks that args is a JSON object satisfying schema and
// returns the normalised payload. Empty or null args become {}.
func ValidateArguments(schema, args json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, goerr.Wrap(ErrInvalidArguments, "arguments are not a JSON object: "+err.Error())
	}
	if len(bytes.TrimSpace(schema)) == 0 {
		return trimmed, nil
	}

	var schemaDoc map[string]any
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		return nil, goerr.Wrap(ErrInvalidArguments, "tool input schema is not valid JSON")
	}
	// draft 2020-12 identifiers are not understood by the validator
	delete(schemaDoc, "$schema")

	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schemaDoc), gojsonschema.NewGoLoader(obj))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidArguments, "schema validation failed: "+err.Error())
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			problems = append(problems, e.String())
		}
		return nil, goerr.Wrap(ErrInvalidArguments, strings.Join(problems, "; "))
	}
	return trimmed, nil
}
