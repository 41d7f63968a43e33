package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/compaction"
	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/content"
	"github.com/haasonsaas/agentcore/internal/editor"
	"github.com/haasonsaas/agentcore/internal/history"
	"github.com/haasonsaas/agentcore/internal/maintenance"
	"github.com/haasonsaas/agentcore/internal/memoryfile"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/prompt"
	"github.com/haasonsaas/agentcore/internal/registry"
	"github.com/haasonsaas/agentcore/internal/scheduler"
	"github.com/haasonsaas/agentcore/internal/session"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func buildChatCmd() *cobra.Command {
	var yolo bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session against the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), yolo)
		},
	}
	cmd.Flags().BoolVar(&yolo, "yolo", false, "auto-approve every tool call without confirmation")
	return cmd
}

func runChat(ctx context.Context, yolo bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.New(observability.Config{Level: "info", Format: "text", Output: os.Stderr})
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{ServiceName: "agentcli", Logger: logger})
	defer shutdown(context.Background())

	reg := registry.New().WithLogger(logger)
	reg.Register(tools.NewReadFile(), false)
	reg.Register(tools.NewWriteFile(), false)
	reg.Register(tools.NewShell(), false)
	reg.Register(tools.NewSaveMemory(cfg.MemoryFilePath), false)

	hist, persist, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if persist != nil {
		defer persist.Close()
	}

	gen := buildGenerator(cfg)

	if v := os.Getenv("AGENTCLI_WRITE_SYSTEM_PROMPT"); v != "" {
		src := prompt.OverrideFromEnv(v, cfg.SystemPromptOverridePath)
		exportPath := src.ExplicitPath
		if exportPath == "" && src.Enabled {
			exportPath = src.DefaultPath
		}
		if exportPath != "" {
			if _, err := prompt.Export(exportPath); err != nil {
				logger.Warn(ctx, "chat: system prompt export failed", "path", exportPath, "error", err)
			}
		}
	}

	assembler := prompt.New(prompt.OverrideFromEnv(os.Getenv("AGENTCLI_SYSTEM_PROMPT"), cfg.SystemPromptOverridePath))
	if memContent, err := memoryfile.Read(cfg.MemoryFilePath); err == nil {
		assembler.SetMemory(memContent)
	}
	if watcher, err := memoryfile.Watch(cfg.MemoryFilePath, logger, assembler.SetMemory); err == nil {
		defer watcher.Close()
	}

	estimator := content.NewLocalEstimator()
	compressor := compaction.New(estimator, gen, cfg.Model, 32000)

	var chatSess *session.ChatSession
	retrying := content.NewRetryingGenerator(gen, content.DefaultRetryConfig(), func(currentModel string) (string, bool) {
		return chatSess.FallbackHook(currentModel)
	})

	chatSess = session.New(session.Config{
		History:       hist,
		Generator:     retrying,
		Assembler:     assembler,
		Registry:      reg,
		Logger:        logger,
		Model:         cfg.Model,
		FallbackModel: cfg.FallbackModel,
		Tracer:        tracer,
		EnvFacts: func() prompt.EnvFacts {
			wd, _ := os.Getwd()
			return prompt.EnvFacts{
				WorkingDirectory:  wd,
				Date:              time.Now().Format("2006-01-02"),
				OS:                runtime.GOOS,
				SandboxStatus:     "none",
				HasVersionControl: detectVersionControl(wd),
			}
		},
	})

	mode := scheduler.ApprovalDefault
	if yolo {
		mode = scheduler.ApprovalYolo
	}
	sched := scheduler.New(reg, logger, mode).WithTracer(tracer)
	if err := sched.Metrics().Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warn(ctx, "chat: metrics registration failed", "error", err)
	}
	bridge := editor.New(editor.Config{Command: cfg.DiffViewer})

	loop := session.NewAgentLoop(chatSess, session.LoopConfig{
		MaxSessionTurns: cfg.MaxSessionTurns,
		Compressor:      compressor,
		Prober:          &session.NextSpeakerProbe{Generator: gen, Model: cfg.Model},
		Logger:          logger,
	})

	if cfg.CompactionSweepCron != "" {
		ticker := maintenance.New(hist, compressor, logger)
		if err := ticker.Start(cfg.CompactionSweepCron); err != nil {
			logger.Warn(ctx, "chat: failed to start compaction ticker", "error", err)
		} else {
			defer ticker.Stop()
		}
	}

	sessionID := uuid.NewString()
	logger.Info(ctx, "chat: session started", "session_id", sessionID, "backend", cfg.Backend)

	fmt.Println("agentcli ready. Type a message, or 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := scanner.Text()
		if line == "exit" {
			return nil
		}
		promptID := uuid.NewString()
		if err := runPrompt(ctx, loop, sched, reg, bridge, hist, persist, promptID, line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

// runPrompt drives one top-level prompt to completion: AgentLoop runs turns
// until the model yields with no pending tool calls, scheduling any
// requested tool calls in between and feeding their FunctionResponse parts
// back as the next turn's user message.
func runPrompt(ctx context.Context, loop *session.AgentLoop, sched *scheduler.Scheduler, reg *registry.Registry, bridge *editor.Bridge, hist *history.Store, persist *history.SQLitePersistence, promptID, text string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	parts := []protocol.Part{protocol.NewText(text)}
	turnsLeft := 10

	for {
		events := loop.SendMessageStream(turnCtx, cancel, parts, promptID, turnsLeft)

		var requests []scheduler.ToolRequest
		for e := range events {
			switch e.Kind {
			case protocol.EventContent:
				fmt.Println(e.Text)
			case protocol.EventThought:
				fmt.Printf("[thought] %s: %s\n", e.ThoughtSubject, e.ThoughtDescription)
			case protocol.EventToolCallRequest:
				requests = append(requests, scheduler.ToolRequest{CallID: e.CallID, Name: e.Name, Args: e.Args})
			case protocol.EventError:
				fmt.Fprintf(os.Stderr, "model error (%s): %s\n", e.ErrorKind, e.ErrorMessage)
			case protocol.EventLoopDetected:
				fmt.Fprintln(os.Stderr, "loop detected; stopping this prompt")
				return nil
			case protocol.EventMaxSessionTurns:
				fmt.Fprintln(os.Stderr, "session turn cap exceeded")
				return nil
			case protocol.EventChatCompressed:
				fmt.Printf("[compressed %d -> %d tokens]\n", e.OriginalTokens, e.NewTokens)
			}
		}

		if persist != nil {
			if err := persist.SaveAll(hist.GetComprehensive()); err != nil {
				return fmt.Errorf("persisting history: %w", err)
			}
		}

		if len(requests) == 0 {
			return nil
		}

		batch, err := scheduleAndConfirm(turnCtx, sched, reg, bridge, requests)
		if err != nil {
			return err
		}

		parts = responseParts(batch)
		turnsLeft--
	}
}

// scheduleAndConfirm runs one batch, answering confirmation prompts from
// stdin. Confirmation handling happens on this goroutine, never inside a
// listener callback.
func scheduleAndConfirm(ctx context.Context, sched *scheduler.Scheduler, reg *registry.Registry, bridge *editor.Bridge, requests []scheduler.ToolRequest) ([]protocol.ToolCall, error) {
	done := make(chan []protocol.ToolCall, 1)
	pending := make(chan protocol.ToolCall, len(requests))

	var mu sync.Mutex
	prompted := make(map[string]bool)

	listener := scheduler.Listener{
		OnUpdate: func(batch []protocol.ToolCall) {
			mu.Lock()
			defer mu.Unlock()
			for _, c := range batch {
				if c.State == protocol.StateAwaitingApproval && !c.IsModifying && !prompted[c.CallID] {
					prompted[c.CallID] = true
					pending <- c
				}
			}
		},
		OnComplete: func(batch []protocol.ToolCall) { done <- batch },
	}

	if err := sched.Schedule(ctx, requests, listener); err != nil {
		return nil, err
	}

	for {
		select {
		case batch := <-done:
			return batch, nil
		case call := <-pending:
			if err := confirmCall(ctx, sched, reg, bridge, call); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			sched.CancelAll()
			return <-done, nil
		}
	}
}

// confirmCall asks the user to approve one awaiting call, looping through
// the modify-with-editor flow as many times as the user wants.
func confirmCall(ctx context.Context, sched *scheduler.Scheduler, reg *registry.Registry, bridge *editor.Bridge, call protocol.ToolCall) error {
	desc, _ := reg.Lookup(call.Name)
	canModify := desc != nil && desc.ModifyContext != nil

	reader := bufio.NewReader(os.Stdin)
	for {
		if call.Confirmation != nil {
			fmt.Printf("\n%s\n", call.Confirmation.Title)
			if call.Confirmation.Diff != "" {
				fmt.Println(call.Confirmation.Diff)
			}
			if call.Confirmation.Command != "" {
				fmt.Printf("  $ %s\n", call.Confirmation.Command)
			}
		}
		choices := "[y]es once / [a]lways / [n]o"
		if canModify {
			choices += " / [e]dit"
		}
		fmt.Printf("%s? ", choices)

		line, err := reader.ReadString('\n')
		if err != nil {
			return sched.HandleConfirmation(ctx, call.CallID, protocol.OutcomeCancel, nil)
		}
		switch strings.TrimSpace(strings.ToLower(line)) {
		case "y", "yes", "":
			return sched.HandleConfirmation(ctx, call.CallID, protocol.OutcomeProceedOnce, nil)
		case "a", "always":
			return sched.HandleConfirmation(ctx, call.CallID, protocol.OutcomeProceedAlwaysTool, nil)
		case "n", "no":
			return sched.HandleConfirmation(ctx, call.CallID, protocol.OutcomeCancel, nil)
		case "e", "edit":
			if !canModify {
				continue
			}
			if err := sched.HandleConfirmation(ctx, call.CallID, protocol.OutcomeModifyWithEditor, nil); err != nil {
				return err
			}
			result, err := bridge.Run(ctx, call.Name, call.Args, desc.ModifyContext)
			if err != nil {
				fmt.Fprintln(os.Stderr, "editor failed:", err)
				continue
			}
			if err := sched.ApplyEditorResult(call.CallID, result.NewArgs, result.Diff); err != nil {
				return err
			}
			call.Args = result.NewArgs
			if call.Confirmation != nil {
				call.Confirmation.Diff = result.Diff
			}
		default:
			continue
		}
	}
}

// responseParts builds the next user Content's parts from a completed
// batch: each Success call's canonical response parts, and a synthetic
// FunctionResponse carrying the failure/cancellation reason otherwise.
func responseParts(batch []protocol.ToolCall) []protocol.Part {
	out := make([]protocol.Part, 0, len(batch))
	for _, c := range batch {
		switch c.State {
		case protocol.StateSuccess:
			out = append(out, c.Response...)
		case protocol.StateError:
			out = append(out, protocol.NewFunctionResponse(c.CallID, c.Name, map[string]any{"error": c.ErrorMessage}))
		case protocol.StateCancelled:
			out = append(out, protocol.NewFunctionResponse(c.CallID, c.Name, map[string]any{"output": c.CancelReason}))
		}
	}
	return out
}

// detectVersionControl reports whether wd is inside a git checkout, walking
// up to the filesystem root.
func detectVersionControl(wd string) bool {
	for dir := wd; dir != ""; {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
	return false
}

func openHistory(cfg config.Config, logger *observability.Logger) (*history.Store, *history.SQLitePersistence, error) {
	if cfg.HistoryDBPath == "" {
		return history.New(), nil, nil
	}
	store, persist, err := history.NewDurable(cfg.HistoryDBPath, "default")
	if err != nil {
		return nil, nil, fmt.Errorf("opening durable history: %w", err)
	}
	logger.Info(context.Background(), "chat: loaded durable history", "path", cfg.HistoryDBPath, "entries", len(store.GetComprehensive()))
	return store, persist, nil
}

func buildGenerator(cfg config.Config) content.ContentGenerator {
	switch cfg.Backend {
	case "anthropic":
		return content.NewAnthropicGenerator(content.AnthropicConfig{APIKey: cfg.APIKey})
	case "openai":
		g, err := content.NewOpenAIGenerator(content.OpenAIConfig{APIKey: cfg.APIKey})
		if err != nil {
			return content.NewFakeGenerator(content.AuthApiKey, demoResponses()...)
		}
		return g
	case "gemini":
		g, err := content.NewGeminiGenerator(context.Background(), content.GeminiConfig{APIKey: cfg.APIKey})
		if err != nil {
			return content.NewFakeGenerator(content.AuthApiKey, demoResponses()...)
		}
		return g
	default:
		return content.NewFakeGenerator(content.AuthOAuthPersonal, demoResponses()...)
	}
}

// demoResponses scripts a fake conversation: the model reads a file via the
// read_file tool, then answers from its contents, so `chat` produces
// something observable with no network access configured.
func demoResponses() []content.Response {
	return []content.Response{
		{
			Parts: []protocol.Part{
				protocol.NewFunctionCall("", "read_file", map[string]any{"path": "agentcli.yaml"}),
			},
			FinishReason: "TOOL_CALL",
		},
		{
			Parts:        []protocol.Part{protocol.NewText("Here's a summary of what I found.")},
			FinishReason: "STOP",
		},
	}
}
