// Package main provides the chatbot CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jesamkim/aws-strands-agents-chatbot/cli"
	"github.com/jesamkim/aws-strands-agents-chatbot/llm"
)

var (
	// Global flags
	sessionID string
	maxIter   int
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Conversational document Q&A with a bounded reasoning loop",
		Long: `A conversational chatbot that answers questions grounded in a document
index. Each turn runs a bounded reasoning loop: plan search keywords,
retrieve evidence, judge its quality, and synthesize a cited answer —
retrying with alternative keywords until the evidence is good enough or
the iteration budget runs out.

Configuration comes from environment variables (or a .env file):
model API keys, per-phase model ids, the document index, and loop limits.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum loop iterations (0 = configured default)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show the step trace and debug logs")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		SessionID: sessionID,
		MaxIter:   maxIter,
		Verbose:   verbose,
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Long: `Answer a single question and exit.

With --session the question continues an existing conversation and the
exchange is saved back to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], options())
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session.

Conversation history is kept per session. With CONVERSATION_DB set the
history survives restarts; otherwise it lives only for the process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), options())
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP",
		Long: `Serve the chat API over HTTP.

Endpoints:
  POST   /v1/chat                  run one turn (optionally in a session)
  GET    /v1/sessions              list sessions
  GET    /v1/sessions/{id}         fetch a session's history
  DELETE /v1/sessions/{id}         delete a session
  GET    /healthz                  health check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Serve(context.Background(), addr, options())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from API_LISTEN_ADDR)")

	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the chatbot tools over MCP (stdio)",
		Long: `Serve the chatbot as MCP tools over stdio, for use from MCP clients.

Tools:
  ask        run the full reasoning loop for a question
  kb_search  search the document index directly`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.MCP(context.Background(), options())
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known model ids by family",
		Run: func(cmd *cobra.Command, args []string) {
			families := []llm.Family{llm.FamilyClaude, llm.FamilyOpenAI, llm.FamilyDeepSeek, llm.FamilyGemini}
			known := llm.KnownModels()
			for _, f := range families {
				fmt.Printf("%s (key: %s)\n", f, f.EnvVar())
				for _, id := range known[f] {
					marker := " "
					if id == f.DefaultModel() {
						marker = "*"
					}
					fmt.Printf("  %s %s\n", marker, id)
				}
			}
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Index a directory of documents into the local index",
		Long: `Walk a directory for .txt and .md files and index them into the local
sqlite index at SEARCH_INDEX_PATH. Re-ingesting a file replaces its
previously indexed chunks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ingest(context.Background(), args[0], options())
		},
	}
}
