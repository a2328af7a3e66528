package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtd/internal/agent"
	"github.com/fyrsmithlabs/thoughtd/internal/config"
)

var (
	// loop command flags
	lpSessionID  string
	lpParentID   string
	lpScript     string
	lpMock       bool
	lpOutputJSON bool
)

func init() {
	rootCmd.AddCommand(loopCmd)

	loopCmd.Flags().StringVar(&lpSessionID, "session", "", "Session identifier (required)")
	loopCmd.Flags().StringVar(&lpParentID, "parent", "", "Parent session for cross-session recall")
	loopCmd.Flags().StringVar(&lpScript, "script", "", "File with one input per line, or \"-\" for stdin")
	loopCmd.Flags().BoolVar(&lpMock, "mock", false, "Use the offline echo client instead of the configured provider")
	loopCmd.Flags().BoolVar(&lpOutputJSON, "json", false, "Output turn results as JSON")
	_ = loopCmd.MarkFlagRequired("session")
}

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Drive agent turns with thought memory",
	Long: `Drive agent turns through the memory loop: each input is completed
with recalled context, the tagged output is stored as thoughts, and a
reflection runs every Nth turn (agent.reflect_every in the config).

Inputs come from --script (one per line) or interactively from stdin, one
turn per line, until EOF. With --mock an offline echo client answers every
prompt with one tagged thought, which exercises the full loop without a
provider.

Examples:
  # Interactive turns against the configured provider
  thoughtctl loop --session sess_1

  # Scripted offline run
  thoughtctl loop --session sess_1 --script turns.txt --mock

  # Continue a session lineage
  thoughtctl loop --session sess_2 --parent sess_1 --mock

  # Emit each turn as JSON
  thoughtctl loop --session sess_1 --script turns.txt --mock --json`,
	RunE: runLoop,
}

// runLoop handles the loop command
func runLoop(cmd *cobra.Command, args []string) error {
	svc, err := initMemService()
	if err != nil {
		return err
	}
	defer svc.Close()

	client, err := buildLoopClient(svc.cfg)
	if err != nil {
		return err
	}

	orchestrator, err := agent.New(agent.Config{
		Model:               svc.cfg.LLM.Model,
		ReflectionFrequency: svc.cfg.Agent.ReflectEvery,
		RecallTopK:          svc.cfg.Agent.RecallLimit,
	}, client, agent.Deps{
		Store:    svc.store,
		Graph:    svc.graph,
		Embedder: svc.embedder,
		Logger:   svc.logger.Underlying(),
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	loop, err := agent.NewLoop(orchestrator, svc.cfg.Agent.ReflectEvery)
	if err != nil {
		return fmt.Errorf("failed to create loop: %w", err)
	}

	ctx := context.Background()
	opts := agent.TurnOptions{
		SessionID:       lpSessionID,
		ParentSessionID: lpParentID,
	}

	if lpScript != "" {
		inputs, err := readScript(lpScript)
		if err != nil {
			return err
		}
		result, err := loop.RunSession(ctx, inputs, opts)
		if err != nil {
			return fmt.Errorf("loop failed: %w", err)
		}
		if lpOutputJSON {
			return outputJSON(result)
		}
		for _, turn := range result.Turns {
			printTurn(turn)
		}
		return nil
	}

	// Interactive: one turn per stdin line until EOF.
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		turn, err := loop.RunTurn(ctx, input, opts)
		if err != nil {
			return fmt.Errorf("turn failed: %w", err)
		}
		if lpOutputJSON {
			if err := outputJSON(turn); err != nil {
				return err
			}
			continue
		}
		printTurn(turn)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	return nil
}

// buildLoopClient picks the echo client for offline runs or the
// configured provider.
func buildLoopClient(cfg *config.Config) (agent.Client, error) {
	if lpMock {
		return agent.EchoClient{}, nil
	}
	return agent.NewClient(agent.ClientConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey.Value(),
		BaseURL:  cfg.LLM.BaseURL,
	})
}

// printTurn writes the assistant text to stdout and the memory summary
// to stderr.
func printTurn(turn *agent.TurnResult) {
	fmt.Println(turn.Completion.CleanedOutput)

	summary := fmt.Sprintf("[thoughtctl] turn %d: stored %d thought(s), recalled %d",
		turn.TurnIndex, len(turn.Completion.Stored), len(turn.Completion.Recalled))
	if turn.Completion.Reflection != nil {
		summary += fmt.Sprintf(", reflected %d", len(turn.Completion.Reflection.Stored))
	}
	fmt.Fprintln(os.Stderr, summary)
}

// readScript loads loop inputs, one per non-blank line.
func readScript(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open script %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var inputs []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("script has no inputs")
	}

	return inputs, nil
}
