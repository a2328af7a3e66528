package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtd/internal/agent"
	"github.com/fyrsmithlabs/thoughtd/internal/reflection"
)

var (
	// reflect command flags
	rfSessionID  string
	rfQuery      string
	rfMode       string
	rfTopK       int
	rfChildID    string
	rfUseLLM     bool
	rfOutputJSON bool
)

func init() {
	rootCmd.AddCommand(reflectCmd)

	reflectCmd.Flags().StringVar(&rfSessionID, "session", "", "Session to reflect over (required)")
	reflectCmd.Flags().StringVar(&rfQuery, "query", "", "Focus question steering which thoughts are recalled")
	reflectCmd.Flags().StringVar(&rfMode, "mode", "", "Reflection mode: reasoning, summarization, contradiction_detection, or planning")
	reflectCmd.Flags().IntVar(&rfTopK, "top-k", 0, "Thoughts recalled into the reflection prompt (default: 8)")
	reflectCmd.Flags().StringVar(&rfChildID, "reflection-session", "", "Child session to store the reflections under")
	reflectCmd.Flags().BoolVar(&rfUseLLM, "llm", false, "Generate the reflection with the configured LLM instead of the deterministic synthesis")
	reflectCmd.Flags().BoolVar(&rfOutputJSON, "json", false, "Output results as JSON")
	_ = reflectCmd.MarkFlagRequired("session")
}

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Run a reflection cycle over a session",
	Long: `Run one reflection cycle: recall the session's most relevant thoughts,
generate meta-thoughts about them, and store the result.

Without --llm the reflection text is synthesized deterministically from the
recalled thoughts, which works offline. With --llm the configured provider
generates it.

Examples:
  # Reflect over a session
  thoughtctl reflect --session sess_1

  # Steer the reflection and pick a mode
  thoughtctl reflect --session sess_1 --query "what broke" --mode contradiction_detection

  # Store reflections in a child session
  thoughtctl reflect --session sess_1 --reflection-session sess_1-review

  # Use the configured LLM
  thoughtctl reflect --session sess_1 --llm`,
	RunE: runReflect,
}

// runReflect handles the reflect command
func runReflect(cmd *cobra.Command, args []string) error {
	svc, err := initMemService()
	if err != nil {
		return err
	}
	defer svc.Close()

	var completeFn reflection.CompleteFunc
	if rfUseLLM {
		client, err := agent.NewClient(agent.ClientConfig{
			Provider: svc.cfg.LLM.Provider,
			APIKey:   svc.cfg.LLM.APIKey.Value(),
			BaseURL:  svc.cfg.LLM.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		model := svc.cfg.LLM.Model
		completeFn = func(ctx context.Context, promptText string) (string, error) {
			return client.Complete(ctx, agent.CompletionRequest{
				UserPrompt: promptText,
				Model:      model,
				MaxTokens:  1024,
			})
		}
	}

	res, err := svc.reflector.Reflect(context.Background(), reflection.Request{
		Query:               rfQuery,
		SessionID:           rfSessionID,
		Mode:                rfMode,
		TopK:                rfTopK,
		ReflectionSessionID: rfChildID,
		Complete:            completeFn,
	})
	if err != nil {
		return fmt.Errorf("reflection failed: %w", err)
	}

	if rfOutputJSON {
		return outputJSON(res)
	}

	// Reflection text to stdout, summary to stderr
	fmt.Println(res.ReflectionText)
	fmt.Fprintf(os.Stderr, "[thoughtctl] Stored %d reflection(s) from %d recalled thought(s) (%.2f ms)\n",
		len(res.Stored), len(res.Recalled), res.LatencyMS)

	return nil
}
