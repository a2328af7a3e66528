package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtd/internal/store"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

var (
	// retrieve command flags
	rtSessionID    string
	rtCategory     string
	rtMinConf      float64
	rtLimit        int
	rtCrossSession bool
	rtHops         int
	rtOutputJSON   bool

	// sessions command flags
	ssOutputJSON bool
)

func init() {
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(sessionsCmd)

	retrieveCmd.Flags().StringVar(&rtSessionID, "session", "", "Filter by session, or the session whose ancestors to recall from with --cross-session")
	retrieveCmd.Flags().StringVar(&rtCategory, "category", "", "Filter by category")
	retrieveCmd.Flags().Float64Var(&rtMinConf, "min-confidence", 0, "Minimum confidence filter")
	retrieveCmd.Flags().IntVar(&rtLimit, "limit", 10, "Maximum number of results")
	retrieveCmd.Flags().BoolVar(&rtCrossSession, "cross-session", false, "Recall from prior sessions in the lineage instead of searching directly")
	retrieveCmd.Flags().IntVar(&rtHops, "hops", 1, "Graph expansion depth for cross-session recall")
	retrieveCmd.Flags().BoolVar(&rtOutputJSON, "json", false, "Output results as JSON")

	sessionsCmd.Flags().BoolVar(&ssOutputJSON, "json", false, "Output results as JSON")
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Retrieve thoughts ranked by similarity and recency",
	Long: `Retrieve stored thoughts matching a query, ranked by a blend of
semantic similarity and recency.

With --cross-session the query recalls from the ancestor sessions of
--session, expanding through linked thoughts when the store has edges.

Examples:
  # Search within one session
  thoughtctl retrieve "cache invalidation" --session sess_1

  # Search the whole store, highest confidence only
  thoughtctl retrieve "error handling" --min-confidence 0.8 --limit 5

  # Recall from the lineage of a child session
  thoughtctl retrieve "auth decisions" --session sess_2 --cross-session

  # Output as JSON
  thoughtctl retrieve "cache invalidation" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	Long: `List the sessions recorded in the thought store, newest first.

Examples:
  # List sessions
  thoughtctl sessions

  # Output as JSON
  thoughtctl sessions --json`,
	RunE: runSessions,
}

// runRetrieve handles the retrieve command
func runRetrieve(cmd *cobra.Command, args []string) error {
	query := args[0]

	svc, err := initMemService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()
	var hits []thought.Scored
	if rtCrossSession {
		if rtSessionID == "" {
			return fmt.Errorf("--session is required with --cross-session")
		}
		hits, err = svc.store.RecallFromPriorSessions(ctx, query, rtSessionID, store.RecallOptions{
			Limit: rtLimit,
			Graph: svc.graph,
			Hops:  rtHops,
		})
	} else {
		hits, err = svc.store.Search(ctx, query, store.SearchOptions{
			Filters: thought.Filters{
				SessionID:     rtSessionID,
				Category:      rtCategory,
				MinConfidence: rtMinConf,
			},
			Limit: rtLimit,
		})
	}
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if rtOutputJSON {
		return outputJSON(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No thoughts found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tID\tSESSION\tCATEGORY\tCONF\tTEXT")
	for _, hit := range hits {
		fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\t%.2f\t%s\n",
			hit.Score,
			truncate(hit.Thought.ID, 12),
			truncate(hit.Thought.SessionID, 16),
			hit.Thought.Category,
			hit.Thought.Confidence,
			truncate(hit.Thought.CleanedText, 60),
		)
	}
	w.Flush()

	return nil
}

// runSessions handles the sessions command
func runSessions(cmd *cobra.Command, args []string) error {
	svc, err := initMemService()
	if err != nil {
		return err
	}
	defer svc.Close()

	sessions, err := svc.store.Sessions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if ssOutputJSON {
		return outputJSON(sessions)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPARENT\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			truncate(s.ID, 24),
			truncate(s.ParentID, 24),
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}
