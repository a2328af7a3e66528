package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thoughtd/internal/prompt"
)

// loopClient emits one uniquely-identified thought per call so multi-turn
// runs store distinct rows.
type loopClient struct {
	mu sync.Mutex
	n  int
}

func (c *loopClient) Provider() string {
	return "mock-loop"
}

func (c *loopClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	c.mu.Lock()
	c.n++
	n := c.n
	c.mu.Unlock()

	snippet := req.UserPrompt
	if runes := []rune(snippet); len(runes) > 50 {
		snippet = string(runes[:50])
	}
	snippet = strings.ReplaceAll(snippet, `"`, "'")
	return fmt.Sprintf("<thought id=%q category=%q confidence=%q>%s</thought>\nFinal answer.",
		fmt.Sprintf("loop-%d", n), "reasoning", "0.91", snippet), nil
}

func newTestLoop(t *testing.T, frequency int) *Loop {
	t.Helper()

	o, _, _ := newTestOrchestrator(t, &loopClient{}, Config{
		Model:       "mock-loop",
		Enforcement: prompt.EnforcementXML,
	})
	l, err := NewLoop(o, frequency)
	require.NoError(t, err)
	return l
}

func TestNewLoopValidation(t *testing.T) {
	_, err := NewLoop(nil, 1)
	require.ErrorContains(t, err, "requires an orchestrator")

	// Frequencies below 1 normalize to every turn.
	l := newTestLoop(t, 0)
	turn, err := l.RunTurn(context.Background(), "first", TurnOptions{SessionID: "loop-norm"})
	require.NoError(t, err)
	assert.NotNil(t, turn.Completion.Reflection)
}

func TestRunTurnReflectionFrequency(t *testing.T) {
	l := newTestLoop(t, 2)

	ctx := context.Background()
	t1, err := l.RunTurn(ctx, "first input", TurnOptions{SessionID: "loop-s"})
	require.NoError(t, err)
	t2, err := l.RunTurn(ctx, "second input", TurnOptions{SessionID: "loop-s"})
	require.NoError(t, err)

	assert.Equal(t, 1, t1.TurnIndex)
	assert.Equal(t, 2, t2.TurnIndex)
	assert.Nil(t, t1.Completion.Reflection)
	assert.NotNil(t, t2.Completion.Reflection)
}

func TestRunTurnCountsSessionsIndependently(t *testing.T) {
	l := newTestLoop(t, 2)

	ctx := context.Background()
	a1, err := l.RunTurn(ctx, "a first", TurnOptions{SessionID: "loop-a"})
	require.NoError(t, err)
	b1, err := l.RunTurn(ctx, "b first", TurnOptions{SessionID: "loop-b"})
	require.NoError(t, err)
	a2, err := l.RunTurn(ctx, "a second", TurnOptions{SessionID: "loop-a"})
	require.NoError(t, err)

	assert.Equal(t, 1, a1.TurnIndex)
	assert.Equal(t, 1, b1.TurnIndex)
	assert.Equal(t, 2, a2.TurnIndex)
	assert.Nil(t, a1.Completion.Reflection)
	assert.Nil(t, b1.Completion.Reflection)
	assert.NotNil(t, a2.Completion.Reflection)
}

func TestRunSession(t *testing.T) {
	l := newTestLoop(t, 1)

	out, err := l.RunSession(context.Background(), []string{"one", "two", "three"}, TurnOptions{
		SessionID: "loop-session",
	})
	require.NoError(t, err)

	assert.Equal(t, "loop-session", out.SessionID)
	require.Len(t, out.Turns, 3)
	assert.Equal(t, 1, out.Turns[0].TurnIndex)
	assert.Equal(t, 3, out.Turns[2].TurnIndex)
	for _, turn := range out.Turns {
		assert.NotEmpty(t, turn.Completion.Stored)
	}
}

func TestRunTurnParentLineage(t *testing.T) {
	o, st, _ := newTestOrchestrator(t, &loopClient{}, Config{
		Model:       "mock-loop",
		Enforcement: prompt.EnforcementXML,
	})
	l, err := NewLoop(o, 2)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = l.RunTurn(ctx, "child turn", TurnOptions{
		SessionID:       "loop-child",
		ParentSessionID: "loop-root",
	})
	require.NoError(t, err)

	session, err := st.Session(ctx, "loop-child")
	require.NoError(t, err)
	assert.Equal(t, "loop-root", session.ParentID)
}
