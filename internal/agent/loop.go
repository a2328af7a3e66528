package agent

import (
	"context"
	"errors"
	"sync"
)

// Loop drives multi-turn agent sessions over an orchestrator, gating
// reflection to every Nth turn per session.
type Loop struct {
	orchestrator *Orchestrator
	frequency    int

	mu    sync.Mutex
	turns map[string]int
}

// NewLoop wraps an orchestrator. Reflection runs on every turn whose
// per-session index is a multiple of frequency; values below 1 mean
// every turn.
func NewLoop(o *Orchestrator, frequency int) (*Loop, error) {
	if o == nil {
		return nil, errors.New("agent: loop requires an orchestrator")
	}
	if frequency < 1 {
		frequency = 1
	}
	return &Loop{
		orchestrator: o,
		frequency:    frequency,
		turns:        make(map[string]int),
	}, nil
}

// TurnOptions addresses a turn to a session.
type TurnOptions struct {
	SessionID       string
	ParentSessionID string
	Model           string
}

// TurnResult is one completed loop turn.
type TurnResult struct {
	TurnIndex  int               `json:"turn_index"`
	UserInput  string            `json:"user_input"`
	Completion *CompletionResult `json:"completion"`
}

// SessionResult collects the turns of one session run.
type SessionResult struct {
	SessionID string        `json:"session_id"`
	Turns     []*TurnResult `json:"turns"`
}

// RunTurn executes one turn: the per-session counter advances, and the
// turn index decides whether this completion reflects.
func (l *Loop) RunTurn(ctx context.Context, userInput string, opts TurnOptions) (*TurnResult, error) {
	l.mu.Lock()
	l.turns[opts.SessionID]++
	turnIndex := l.turns[opts.SessionID]
	l.mu.Unlock()

	shouldReflect := turnIndex%l.frequency == 0
	completion, err := l.orchestrator.Complete(ctx, userInput, CompleteOptions{
		SessionID:       opts.SessionID,
		ParentSessionID: opts.ParentSessionID,
		Model:           opts.Model,
		Reflect:         &shouldReflect,
	})
	if err != nil {
		return nil, err
	}
	LoopTurns.Inc()

	return &TurnResult{
		TurnIndex:  turnIndex,
		UserInput:  userInput,
		Completion: completion,
	}, nil
}

// RunSession executes the inputs in order as turns of one session. The
// first error aborts the run.
func (l *Loop) RunSession(ctx context.Context, inputs []string, opts TurnOptions) (*SessionResult, error) {
	out := &SessionResult{SessionID: opts.SessionID}
	for _, text := range inputs {
		turn, err := l.RunTurn(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		out.Turns = append(out.Turns, turn)
	}
	return out, nil
}
