package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/solaceapp/solace/internal/audio"
	"github.com/solaceapp/solace/internal/config"
	"github.com/solaceapp/solace/internal/conversation"
	"github.com/solaceapp/solace/internal/ingest"
	"github.com/solaceapp/solace/internal/remote"
	"github.com/solaceapp/solace/internal/session"
	"github.com/solaceapp/solace/internal/tui"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "solace",
	Short:         "Grief companion built on a loved one's chat history",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(memoriesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

// app bundles the collaborators every client command needs.
type app struct {
	cfg      config.Config
	client   *remote.Client
	sessions *session.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	return &app{
		cfg:      cfg,
		client:   remote.NewClient(cfg.Server.BaseURL),
		sessions: session.NewStore(session.NewFileKV(cfg.Storage.DataDir)),
	}, nil
}

func (a *app) newPipeline() *audio.Pipeline {
	var tr audio.Transcriber = audio.DemoTranscriber{}
	if a.cfg.Audio.Transcriber == "http" {
		tr = audio.NewHTTPTranscriber(a.cfg.Audio.TranscriberURL, a.cfg.Audio.SampleRate)
	}
	return audio.NewPipeline(audio.DemoDevice{SampleRate: a.cfg.Audio.SampleRate}, tr, a.cfg.Audio.Bins)
}

func (a *app) tuiDeps() tui.Deps {
	return tui.Deps{
		Orchestrator: ingest.NewOrchestrator(a.client, a.sessions, ingest.DefaultTimings()),
		Pipeline:     a.newPipeline(),
		NewController: func(sess session.Session) *conversation.Controller {
			return conversation.NewController(chatterAdapter{client: a.client}, sess.SessionID, sess.PersonName)
		},
	}
}

// chatterAdapter narrows the HTTP client to the conversation contract.
type chatterAdapter struct {
	client *remote.Client
}

func (c chatterAdapter) Chat(ctx context.Context, message, sessionID string) (conversation.ChatReply, error) {
	res, err := c.client.Chat(ctx, message, sessionID)
	if err != nil {
		return conversation.ChatReply{}, err
	}
	return conversation.ChatReply{Reply: res.Reply, IsCrisis: res.IsCrisis}, nil
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <chat-export.txt>",
	Short: "Import a WhatsApp chat export and start talking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		deps := a.tuiDeps()
		if err := deps.Orchestrator.SelectFile(args[0]); err != nil {
			return err
		}

		_, err = tea.NewProgram(tui.New(deps), tea.WithAltScreen()).Run()
		return err
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Resume the conversation for the imported session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		sess, ok := a.sessions.Load()
		if !ok || !a.sessions.Active() {
			return fmt.Errorf("no active session — run `solace import <chat-export.txt>` first")
		}

		_, err = tea.NewProgram(tui.NewResumed(a.tuiDeps(), sess), tea.WithAltScreen()).Run()
		return err
	},
}

// --- memories ---

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "Browse or search the indexed messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")

		a, err := newApp()
		if err != nil {
			return err
		}
		sess, ok := a.sessions.Load()
		if !ok || sess.SessionID == "" {
			return fmt.Errorf("no active session — run `solace import <chat-export.txt>` first")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		memories, err := a.client.Memories(ctx, sess.SessionID, search)
		if err != nil {
			return err
		}
		if len(memories) == 0 {
			printWarning("no memories found")
			return nil
		}

		for _, m := range memories {
			header := m.Sender
			if m.Date != "" {
				header += "  " + m.Date
			}
			if m.Score > 0 {
				header += fmt.Sprintf("  (%.2f)", m.Score)
			}
			fmt.Println(colorize(colorBold, header))
			fmt.Println("  " + m.Text)
		}
		return nil
	},
}

func init() {
	memoriesCmd.Flags().String("search", "", "relevance-rank memories against this query")
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if sess, ok := a.sessions.Load(); ok && sess.SessionID != "" {
			printStatus("Session", "%s", sess.SessionID)
			printStatus("Person", "%s", sess.PersonName)
			printStatus("Memories", "%d", sess.MemoryCount)
		} else {
			printStatus("Session", "none")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := a.client.Health(ctx); err != nil {
			printError("Service unreachable at %s", a.cfg.Server.BaseURL)
			return nil
		}
		printSuccess("Service healthy at %s", a.cfg.Server.BaseURL)
		return nil
	},
}

// --- clear ---

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the session and its memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		sess, ok := a.sessions.Load()
		if !ok || sess.SessionID == "" {
			printWarning("no session to clear")
			return nil
		}

		// Remote deletion is best-effort; the local clear always runs.
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		if err := a.client.DeleteSession(ctx, sess.SessionID); err != nil {
			printWarning("could not delete remote session: %v", err)
		}

		if err := a.sessions.Clear(); err != nil {
			return fmt.Errorf("clearing local session: %w", err)
		}
		printSuccess("Session cleared")
		return nil
	},
}
