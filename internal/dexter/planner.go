package dexter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/DexterGo/consts"
	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/tools"
)

// PlanRequest carries everything a planner needs to produce a plan.
type PlanRequest struct {
	Query       string
	SymbolKey   models.SymbolKey
	Trigger     models.TriggerReason
	Requester   string
	DataRequest string
	Context     string
}

// Planner turns a research request into an executable plan. Plan generation
// never fails: implementations degrade to a deterministic baseline plan when
// the model is unreachable or answers garbage.
type Planner interface {
	GeneratePlan(ctx context.Context, req PlanRequest) *models.ResearchPlan
}

// LLMPlanner prompts a chat model with the tool vocabulary and parses the
// returned JSON plan.
type LLMPlanner struct {
	model    model.BaseChatModel
	registry *tools.Registry
	maxSteps int
}

func NewLLMPlanner(m model.BaseChatModel, registry *tools.Registry, maxSteps int) *LLMPlanner {
	return &LLMPlanner{model: m, registry: registry, maxSteps: maxSteps}
}

const plannerSystemPrompt = `You are a research planner for an investment analysis team.
Given a research request, produce a JSON plan of tool invocations.

Respond with ONLY a JSON object of this shape:
{
  "objective": "what this plan finds out",
  "steps": [
    {
      "step_id": "step_1",
      "tool_name": "<one of the available tools>",
      "args": {"symbol": "MARKET:CODE", ...},
      "expected_output": "what the step should yield"
    }
  ]
}

Rules:
- Use only the available tools listed below.
- Every step's symbol argument must be exactly the requested symbol.
- At most %d steps.
- Order steps from broad context to specific detail.

Available tools:
%s`

func (p *LLMPlanner) GeneratePlan(ctx context.Context, req PlanRequest) *models.ResearchPlan {
	prompt := fmt.Sprintf(plannerSystemPrompt, p.maxSteps, p.renderTools())

	var user strings.Builder
	fmt.Fprintf(&user, "Research request: %s\nSymbol: %s\n", req.Query, req.SymbolKey)
	if req.DataRequest != "" {
		fmt.Fprintf(&user, "An expert asked for additional data: %s\n", req.DataRequest)
	}
	if req.Context != "" {
		fmt.Fprintf(&user, "\nWork already done:\n%s\n", req.Context)
	}

	resp, err := p.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(prompt),
		schema.UserMessage(user.String()),
	})
	if err != nil {
		log.Printf("Planner model call failed, using baseline plan: %v", err)
		return FallbackPlan(req.SymbolKey, req.Query)
	}

	plan, err := parsePlan(resp.Content, req.SymbolKey)
	if err != nil {
		log.Printf("Planner returned an unusable plan, using baseline: %v", err)
		return FallbackPlan(req.SymbolKey, req.Query)
	}
	return plan
}

func (p *LLMPlanner) renderTools() string {
	var b strings.Builder
	for _, info := range p.registry.Schemas() {
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Desc)
	}
	return b.String()
}

func parsePlan(content string, symbol models.SymbolKey) (*models.ResearchPlan, error) {
	payload := extractJSON(content)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var plan models.ResearchPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	for i := range plan.Steps {
		if plan.Steps[i].StepID == "" {
			plan.Steps[i].StepID = fmt.Sprintf("step_%d", i+1)
		}
	}
	plan.SymbolKey = symbol.String()
	plan.CreatedAt = time.Now()
	return &plan, nil
}

// extractJSON pulls the outermost JSON object out of a model response that
// may wrap it in prose or a code fence.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// FallbackPlan is the deterministic baseline plan used when the model cannot
// produce one: a quote, a month of daily bars and recent news for the symbol.
func FallbackPlan(symbol models.SymbolKey, query string) *models.ResearchPlan {
	sym := symbol.String()
	objective := "Baseline market overview"
	if query != "" {
		objective = fmt.Sprintf("Baseline market overview for: %s", query)
	}
	return &models.ResearchPlan{
		Objective: objective,
		SymbolKey: sym,
		CreatedAt: time.Now(),
		Steps: []models.ResearchStep{
			{
				StepID:         "step_1",
				ToolName:       consts.ToolMarketQuote,
				Args:           map[string]any{"symbol": sym},
				ExpectedOutput: "latest price snapshot",
			},
			{
				StepID:         "step_2",
				ToolName:       consts.ToolMarketBars,
				Args:           map[string]any{"symbol": sym, "timeframe": "1d", "lookback_days": 30},
				ExpectedOutput: "one month of daily candles",
			},
			{
				StepID:         "step_3",
				ToolName:       consts.ToolMarketNews,
				Args:           map[string]any{"symbol": sym, "limit": 10},
				ExpectedOutput: "recent coverage",
			},
		},
	}
}
