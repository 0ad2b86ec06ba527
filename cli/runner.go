// Command execution for CLI commands.
//
// Information Hiding:
// - Application wiring hidden (see deps.go)
// - Session handling hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jesamkim/aws-strands-agents-chatbot/api"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
	"github.com/jesamkim/aws-strands-agents-chatbot/search"
)

// Ask answers a single question and prints the result. With a session id
// the question continues that conversation and the exchange is persisted.
func Ask(ctx context.Context, question string, opts Options) error {
	d, err := buildDeps(opts)
	if err != nil {
		return err
	}
	defer d.cleanup()

	var history []model.ConversationTurn
	if opts.SessionID != "" {
		history, err = d.store.Load(ctx, opts.SessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	res := d.engine.Run(ctx, question, history)
	printResult(res, opts.Verbose)

	if opts.SessionID != "" {
		if err := saveExchange(ctx, d, opts.SessionID, question, res.Content, history); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
		}
	}
	return nil
}

// Chat starts an interactive chat session. History is kept per session and
// survives restarts when a conversation database is configured.
func Chat(ctx context.Context, opts Options) error {
	d, err := buildDeps(opts)
	if err != nil {
		return err
	}
	defer d.cleanup()

	session := opts.SessionID
	if session == "" {
		session = "default"
	}

	history, err := d.store.Load(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) > 0 {
		fmt.Printf("Resuming session '%s' (%d messages)\n\n", session, len(history))
	}

	if d.search.Configured() {
		fmt.Println("Chat with document search. Type 'exit' to quit.")
	} else {
		fmt.Println("Chat (no document index configured). Type 'exit' to quit.")
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		res := d.engine.Run(ctx, input, history)

		fmt.Println()
		printResult(res, opts.Verbose)
		fmt.Println()

		now := time.Now()
		history = append(history,
			model.ConversationTurn{Role: model.RoleUser, Content: input, Timestamp: now},
			model.ConversationTurn{Role: model.RoleAssistant, Content: res.Content, Timestamp: now},
		)
		if err := d.store.Save(ctx, session, history); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save history: %v\n", err)
		}
	}

	return scanner.Err()
}

// Serve runs the HTTP API until the context is cancelled or an interrupt
// arrives.
func Serve(ctx context.Context, addr string, opts Options) error {
	d, err := buildDeps(opts)
	if err != nil {
		return err
	}
	defer d.cleanup()

	if addr == "" {
		addr = d.settings.Server.ListenAddr
	}

	apiServer := api.NewServer(d.engine, d.store).
		WithLogger(d.logger.WithPrefix("api"))
	srv := &http.Server{
		Addr:    addr,
		Handler: apiServer.Handler(),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	d.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// MCP serves the chatbot tools over MCP stdio transport. Logs go to stderr;
// stdout carries the protocol.
func MCP(ctx context.Context, opts Options) error {
	d, err := buildDeps(opts)
	if err != nil {
		return err
	}
	defer d.cleanup()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Engine: d.engine,
		Search: d.search,
		Store:  d.store,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d.logger.Info("mcp server listening on stdio")
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Ingest indexes a directory of documents into the configured local index.
func Ingest(ctx context.Context, dir string, opts Options) error {
	settings, err := buildSettings()
	if err != nil {
		return err
	}
	if settings.Search.IndexPath == "" {
		return fmt.Errorf("SEARCH_INDEX_PATH is not set; ingest needs a local index")
	}

	ix, err := search.OpenLocalIndex(settings.Search.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open local index: %w", err)
	}
	defer ix.Close()

	fmt.Printf("Indexing %s into %s...\n", dir, settings.Search.IndexPath)
	stats, err := search.IngestDir(ctx, ix, dir)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d files (%d chunks)\n", stats.Files, stats.Chunks)
	return nil
}

// printResult writes the answer, its sources, and run statistics. Verbose
// output includes the full step trace.
func printResult(res model.Result, verbose bool) {
	if verbose {
		printTrace(res.Trace)
	}

	fmt.Println(res.Content)

	if len(res.CitationsUsed) > 0 {
		cited := make(map[int]bool, len(res.CitationsUsed))
		for _, id := range res.CitationsUsed {
			cited[id] = true
		}
		fmt.Println("\nSources:")
		for _, r := range res.SearchResults {
			if cited[r.CitationID] {
				fmt.Printf("  [%d] %s (score %.2f)\n", r.CitationID, r.Source, r.Score)
			}
		}
	}

	fmt.Printf("\n(%d iteration(s), %s, %dms", res.IterationsUsed,
		res.TerminationReason, res.ExecutionTime.Milliseconds())
	if res.TokenUsage.TotalTokens > 0 {
		fmt.Printf(", %d tokens", res.TokenUsage.TotalTokens)
	}
	fmt.Println(")")
}

func printTrace(trace []model.StepRecord) {
	if len(trace) == 0 {
		return
	}
	fmt.Println("Steps:")
	for i, step := range trace {
		marker := " "
		if step.Err {
			marker = "!"
		}
		fmt.Printf("  %2d.%s [%s] %s\n", i+1, marker, step.Type, step.Content)
	}
	fmt.Println()
}

func saveExchange(ctx context.Context, d *deps, session, question, answer string, history []model.ConversationTurn) error {
	now := time.Now()
	history = append(history,
		model.ConversationTurn{Role: model.RoleUser, Content: question, Timestamp: now},
		model.ConversationTurn{Role: model.RoleAssistant, Content: answer, Timestamp: now},
	)
	return d.store.Save(ctx, session, history)
}
