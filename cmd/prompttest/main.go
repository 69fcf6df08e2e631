package main

// Run one chat through the full axis analysis against the live Gemini API
// and print the validated result, for iterating on prompt changes:
//   go run ./cmd/prompttest -source export.json -chat chat-123

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/analysis"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/catalog"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/chats"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llm/gemini"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/llmcache"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/opsmetrics"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/ratebudget"
	"github.com/gabrielpastega-bcmed/projeto-analise-SDR/internal/shared/config"
)

func main() {
	cfg := config.Load()

	sourcePath := flag.String("source", "", "Path to chat export (json or xlsx)")
	chatID := flag.String("chat", "", "Chat id to analyze (default: first chat in the export)")
	promptsPath := flag.String("prompts", cfg.PromptsFile, "Prompts override file (optional)")
	model := flag.String("model", cfg.GeminiModel, "Gemini model")
	outPath := flag.String("out", "", "Path to write raw JSON output (optional)")
	flag.Parse()

	if strings.TrimSpace(*sourcePath) == "" {
		exitErr("source path is required")
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		exitErr("GEMINI_API_KEY is required")
	}

	ctx := context.Background()

	chat, err := findChat(ctx, *sourcePath, *chatID)
	if err != nil {
		exitErr(err.Error())
	}

	prompts, err := gemini.LoadPrompts(*promptsPath)
	if err != nil {
		exitErr(fmt.Sprintf("load prompts: %v", err))
	}

	client, err := gemini.New(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   *model,
		Timeout: cfg.GeminiTimeout,
	})
	if err != nil {
		exitErr(err.Error())
	}

	// No cache: prompt iteration always wants a fresh model response.
	budget := ratebudget.New(cfg.RateLimitRPM, time.Minute)
	analyzer := analysis.NewAnalyzer(client, budget, llmcache.NewNoop(), prompts, catalog.NewStatic(), *model, cfg.CacheTTL)

	chat.SortMessages()
	if err := chat.Validate(); err != nil {
		exitErr(fmt.Sprintf("invalid chat: %v", err))
	}

	result, err := analyzer.AnalyzeFull(ctx, chat)
	if err != nil {
		exitErr(fmt.Sprintf("analyze: %v", err))
	}
	result.Ops = opsmetrics.Compute(chat, cfg.CompanyEmailDomain)
	result.AgentName = chat.AgentName()
	if result.AgentName == "" {
		result.AgentName = opsmetrics.UnassignedAgent
	}
	result.Tags = chat.TagNames()

	raw, err := json.Marshal(result)
	if err != nil {
		exitErr(fmt.Sprintf("encode result: %v", err))
	}
	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func findChat(ctx context.Context, path, chatID string) (*chats.Chat, error) {
	source, err := openSource(path)
	if err != nil {
		return nil, err
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	for {
		chat, err := source.Next(ctx)
		if errors.Is(err, chats.ErrDone) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export: %w", err)
		}
		if chatID == "" || chat.ID == chatID {
			return chat, nil
		}
	}
	if chatID == "" {
		return nil, fmt.Errorf("export has no chats")
	}
	return nil, fmt.Errorf("chat %q not found in export", chatID)
}

func openSource(path string) (chats.Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return chats.NewJSONSource(path)
	case ".xlsx":
		return chats.NewXLSXSource(path)
	default:
		return nil, fmt.Errorf("unsupported export file type: %s", filepath.Ext(path))
	}
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
