package planner

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"text/template"
	"time"

	"nutrilanka/internal/api"
	"nutrilanka/internal/body"
	"nutrilanka/internal/knowledge"
	"nutrilanka/internal/llm"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/shared"
)

//go:embed planner_prompt.md
var plannerPrompt string

// SystemInstruction is the persona the generator model runs with.
const SystemInstruction = "You are a professional nutritionist and meal planner specializing in Sri Lankan cuisine."

// Plan sources.
const (
	SourceAI       = "ai_generator"
	SourceFallback = "fallback_generator"
)

// DefaultSomatotype is assumed when the profile has none.
const DefaultSomatotype = "Mesomorph"

const (
	maxAttempts    = 3
	defaultBackoff = 5 * time.Second
)

var promptTemplate = template.Must(template.New("Planner").Funcs(template.FuncMap{
	"json": func(v []string) (string, error) {
		if len(v) == 0 {
			return "[]", nil
		}
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
}).Parse(plannerPrompt))

// Planner generates meal plans from the knowledge base with an LLM.
type Planner struct {
	kb      *knowledge.Base
	textGen llm.TextGenerator

	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	rng     *rand.Rand
	now     func() time.Time
}

// NewPlanner creates a new Planner instance. textGen may be nil, in which
// case every plan is built by the fallback generator.
func NewPlanner(kb *knowledge.Base, textGen llm.TextGenerator) *Planner {
	return &Planner{
		kb:      kb,
		textGen: textGen,
		backoff: defaultBackoff,
		sleep:   sleepContext,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6e75747269)),
		now:     time.Now,
	}
}

type promptData struct {
	Days               int
	Gender             string
	BMICategory        body.Category
	Somatotype         string
	Goal               string
	DietaryConstraints string
	Breakfast          []string
	Lunch              []string
	Dinner             []string
	Snacks             []string
	Guidance           []string
}

// GeneratePlan creates a days-long plan for profile. Rate-limited calls are
// retried with exponential backoff; any other failure, or running out of
// attempts, yields a fallback plan built from the knowledge base. The
// returned metas cover every model call made, successful or not.
func (p *Planner) GeneratePlan(ctx context.Context, profile api.Profile, days int) (*mealplan.Generated, []shared.AgentMeta, error) {
	if days < 1 {
		return nil, nil, &mealplan.ValidationError{Field: "plan_days", Reason: fmt.Sprintf("must be at least 1, got %d", days)}
	}

	data := newPromptData(profile, days)
	kbCtx := p.kb.Retrieve(data.Gender, data.BMICategory, data.Somatotype)
	data.Breakfast = kbCtx.Options(mealplan.Breakfast)
	data.Lunch = kbCtx.Options(mealplan.Lunch)
	data.Dinner = kbCtx.Options(mealplan.Dinner)
	data.Snacks = kbCtx.Options(mealplan.Snacks)
	data.Guidance = kbCtx.Guidance

	if p.textGen == nil {
		log.Printf("No text generator configured, building fallback plan")
		return p.fallbackPlan(kbCtx, days, profile.Goal), nil, nil
	}

	prompt, err := buildPrompt(data)
	if err != nil {
		return nil, nil, err
	}

	var metas []shared.AgentMeta
	for attempt := 0; attempt < maxAttempts; attempt++ {
		start := time.Now()
		resp, err := p.textGen.GenerateContent(ctx, prompt)
		metas = append(metas, shared.AgentMeta{
			AgentName: "Planner",
			Usage:     resp.Usage,
			Latency:   time.Since(start),
		})

		if err != nil {
			if errors.Is(err, llm.ErrRateLimited) {
				wait := p.backoff * time.Duration(1<<attempt)
				log.Printf("Gemini quota exceeded. Retrying in %s...", wait)
				if err := p.sleep(ctx, wait); err != nil {
					return nil, metas, err
				}
				continue
			}
			log.Printf("Error calling Gemini: %v", err)
			break
		}

		plan, err := decodePlan(resp.Content)
		if err != nil {
			log.Printf("Error parsing generated plan: %v", err)
			break
		}
		if n := plan.MealPlan.Days(); n != days {
			log.Printf("Warning: asked for %d days, model returned %d", days, n)
		}
		plan.Source = SourceAI
		plan.Goal = profile.Goal
		plan.CreatedAt = mealplan.Timestamp{Time: p.now().UTC()}
		return plan, metas, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, metas, err
	}
	log.Printf("All retries failed. Generating fallback plan locally.")
	return p.fallbackPlan(kbCtx, days, profile.Goal), metas, nil
}

// newPromptData fills the profile half of the prompt, applying defaults.
func newPromptData(profile api.Profile, days int) promptData {
	gender := strings.ToLower(strings.TrimSpace(profile.Gender))
	if gender == "" {
		gender = "male"
	}
	category := profile.BMICategory
	if category == "" {
		if profile.BMI > 0 {
			category = body.CategoryFor(profile.BMI)
		} else if profile.WeightKg > 0 && profile.HeightCm > 0 {
			category = body.CategoryFor(body.BMI(profile.WeightKg, profile.HeightCm))
		} else {
			category = body.Normal
		}
	}
	somatotype := profile.Somatotype
	if somatotype == "" {
		somatotype = DefaultSomatotype
	}
	goal := profile.Goal
	if goal == "" {
		goal = "healthy living"
	}
	constraints := profile.DietaryConstraints
	if constraints == "" {
		constraints = "none"
	}

	return promptData{
		Days:               days,
		Gender:             gender,
		BMICategory:        category,
		Somatotype:         somatotype,
		Goal:               goal,
		DietaryConstraints: constraints,
	}
}

func buildPrompt(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build planner prompt: %w", err)
	}
	return buf.String(), nil
}

func decodePlan(content string) (*mealplan.Generated, error) {
	var plan mealplan.Generated
	if err := json.Unmarshal([]byte(llm.StripCodeFence(content)), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse meal plan JSON: %w", err)
	}
	if err := plan.MealPlan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
