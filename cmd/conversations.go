package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/koopa0/docchat/internal/config"
	"github.com/koopa0/docchat/internal/conversation"
	"github.com/koopa0/docchat/internal/log"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List stored conversations and their transcripts",
	RunE:  runConversations,
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}

// runConversations reads the history file directly; no model or database
// connection is needed to print transcripts.
func runConversations(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelWarn})

	store, err := conversation.NewStore(cfg.HistoryPath, logger)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	if _, err := store.Load(); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	ids := store.List()
	if len(ids) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	for _, id := range ids {
		msgs, err := store.Messages(id)
		if err != nil {
			continue
		}
		fmt.Printf("%s (%d messages)\n", id, len(msgs))
		for _, msg := range msgs {
			fmt.Printf("  %s: %s\n", msg.Role, msg.Content)
		}
		fmt.Println()
	}
	return nil
}
