package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/docchat/internal/app"
	"github.com/koopa0/docchat/internal/config"
	"github.com/koopa0/docchat/internal/log"
	"github.com/koopa0/docchat/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: slog.LevelWarn})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	state, err := a.Coordinator.Init()
	if err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}

	fmt.Printf("docchat %s — model %s\n", AppVersion, cfg.FullModelName())
	fmt.Println("Type /help for commands, /quit to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye.")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(ctx, a, state, input); quit {
				return nil
			}
			continue
		}

		reply, err := a.Coordinator.Send(ctx, state, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply.Content)
		fmt.Println()
	}
}

// handleCommand dispatches a /command. Returns true when the loop should
// exit.
func handleCommand(ctx context.Context, a *app.App, state *session.State, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		fmt.Println("Goodbye.")
		return true

	case "/help":
		printChatHelp()

	case "/docs":
		if err := a.Coordinator.Reconcile(state, nil); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		if len(state.Documents) == 0 {
			fmt.Println("No documents yet. Use /upload <path> or drop files into", a.Documents.Root())
			break
		}
		for i, doc := range state.Documents {
			marker := " "
			if state.Selected(doc.Path) {
				marker = "*"
			}
			fmt.Printf("%3d [%s] %s\n", i+1, marker, doc.Name)
		}

	case "/select", "/deselect":
		if len(args) != 1 {
			fmt.Printf("usage: %s <number>\n", cmd)
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(state.Documents) {
			fmt.Println("unknown document number; run /docs first")
			break
		}
		doc := state.Documents[n-1]
		a.Coordinator.Select(state, doc.Path, cmd == "/select")
		fmt.Printf("%s: %s\n", strings.TrimPrefix(cmd, "/"), doc.Name)

	case "/upload":
		if len(args) != 1 {
			fmt.Println("usage: /upload <path>")
			break
		}
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		err = a.Coordinator.Reconcile(state, []session.Upload{{
			Name: filepath.Base(args[0]),
			Data: f,
		}})
		_ = f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Println("uploaded:", filepath.Base(args[0]))

	case "/summary":
		if len(args) != 1 {
			fmt.Println("usage: /summary <number>")
			break
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(state.Documents) {
			fmt.Println("unknown document number; run /docs first")
			break
		}
		doc := state.Documents[n-1]
		text, err := a.Manager.Summarize(ctx, doc.Path)
		if err != nil {
			fmt.Printf("Summary unavailable for %s.\n", doc.Name)
			break
		}
		fmt.Println(text)

	case "/new":
		id, err := a.Coordinator.NewConversation(state)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		fmt.Println("started conversation", id)

	case "/conversations":
		for _, id := range a.Coordinator.Conversations() {
			marker := " "
			if id == state.ConversationID {
				marker = "*"
			}
			fmt.Printf("[%s] %s\n", marker, id)
		}

	case "/switch":
		if len(args) != 1 {
			fmt.Println("usage: /switch <conversation-id>")
			break
		}
		if err := a.Coordinator.SelectConversation(state, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			break
		}
		for _, msg := range a.Coordinator.Transcript(state) {
			fmt.Printf("%s: %s\n", msg.Role, msg.Content)
		}

	default:
		fmt.Println("unknown command; type /help")
	}
	return false
}

func printChatHelp() {
	fmt.Println(`Commands:
  /docs               list documents (* = selected)
  /select <n>         add document n to the grounding set
  /deselect <n>       remove document n from the grounding set
  /upload <path>      copy a file into the data directory
  /summary <n>        summarize document n
  /new                start a new conversation
  /conversations      list conversations (* = active)
  /switch <id>        switch to a conversation and print its transcript
  /quit               exit`)
}
