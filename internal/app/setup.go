package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"nutrilanka/internal/body"
	"nutrilanka/internal/chat"
	"nutrilanka/internal/config"
	"nutrilanka/internal/database"
	"nutrilanka/internal/knowledge"
	"nutrilanka/internal/llm"
	"nutrilanka/internal/metrics"
	"nutrilanka/internal/planner"
	"nutrilanka/internal/tips"
)

const chatSystemPrompt = "You are a friendly Sri Lankan nutrition and fitness assistant."

// Setup opens the database, loads the knowledge base and connects the
// configured models. Without GEMINI_API_KEY plans come from the fallback
// generator; without GROQ_API_KEY chat is disabled and tips are static.
// The returned func releases everything Setup opened.
func Setup(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	kb, err := knowledge.Load(cfg.KnowledgeBasePath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Loaded %d knowledge base entries from %s", len(kb.Entries), cfg.KnowledgeBasePath)

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closers := []func() error{db.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("Warning: cleanup failed: %v", err)
			}
		}
	}

	var planGen llm.TextGenerator
	if cfg.RequireGemini() == nil {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, llm.GeminiOptions{
			SystemInstruction: planner.SystemInstruction,
			JSON:              true,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		closers = append(closers, gemini.Close)
		planGen = gemini
	} else {
		log.Printf("GEMINI_API_KEY not set, meal plans will use the fallback generator")
	}

	plans := planner.NewPlanRepository(db.SQL)
	measurements := body.NewMeasurementRepository(db.SQL)

	var assistant *chat.Assistant
	var tipsGen llm.TextGenerator
	if cfg.RequireGroq() == nil {
		chatGen := llm.NewGroqClient(cfg.GroqAPIKey, chatSystemPrompt, false)
		assistant = chat.NewAssistant(chatGen, chat.NewHistoryRepository(db.SQL), measurements, plans, kb)
		tipsGen = llm.NewGroqClient(cfg.GroqAPIKey, tips.SystemPrompt, true)
	} else {
		log.Printf("GROQ_API_KEY not set, chat is disabled and tips are static")
	}

	a := NewApp(
		planner.NewPlanner(kb, planGen),
		plans,
		planner.NewSelectionRepository(db.SQL),
		measurements,
		assistant,
		tips.NewGenerator(tipsGen),
		metrics.NewStore(db.SQL),
		cfg.PlanDays,
		filepath.Dir(cfg.DatabasePath),
	)
	return a, cleanup, nil
}
