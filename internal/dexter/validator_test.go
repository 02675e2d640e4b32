package dexter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dyike/DexterGo/consts"
	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/providers"
	"github.com/dyike/DexterGo/internal/tools"
)

func newTestValidator(maxSteps int) *Validator {
	r := tools.NewRegistry()
	tools.RegisterDataTools(r, providers.NewManager())
	return NewValidator(r, maxSteps)
}

func planWithSteps(n int) *models.ResearchPlan {
	plan := &models.ResearchPlan{
		Objective: "test",
		SymbolKey: "US:AAPL",
		CreatedAt: time.Now(),
	}
	for i := 0; i < n; i++ {
		plan.Steps = append(plan.Steps, models.ResearchStep{
			StepID:   "step_" + string(rune('a'+i)),
			ToolName: consts.ToolMarketQuote,
			Args:     map[string]any{"symbol": "US:AAPL", "n": i},
		})
	}
	return plan
}

func TestValidateRejectsOversizedPlan(t *testing.T) {
	v := newTestValidator(3)
	err := v.Validate(planWithSteps(5), nil)
	if err == nil {
		t.Fatal("expected step-count error")
	}
	if !strings.Contains(err.Error(), "5") || !strings.Contains(err.Error(), "3") {
		t.Errorf("error should name actual and limit, got: %v", err)
	}
}

func TestValidateRejectsUnknownTool(t *testing.T) {
	v := newTestValidator(15)
	plan := planWithSteps(1)
	plan.Steps[0].ToolName = "order_execution"
	if err := v.Validate(plan, nil); err == nil {
		t.Fatal("expected unknown-tool error")
	}
}

func TestValidateRejectsSymbolDrift(t *testing.T) {
	v := newTestValidator(15)
	plan := planWithSteps(2)
	plan.Steps[1].Args = map[string]any{"symbol": "US:TSLA"}

	err := v.Validate(plan, nil)
	if err == nil {
		t.Fatal("expected symbol mismatch error")
	}
	for _, want := range []string{"US:TSLA", "US:AAPL", plan.Steps[1].StepID} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidateRejectsBareSymbol(t *testing.T) {
	v := newTestValidator(15)
	plan := planWithSteps(1)
	plan.SymbolKey = ""
	plan.Steps[0].Args = map[string]any{"symbol": "AAPL"}
	if err := v.Validate(plan, nil); err == nil {
		t.Fatal("expected error for symbol without market prefix")
	}
}

func TestValidateRejectsMarketScopedToolOnOtherMarket(t *testing.T) {
	r := tools.NewRegistry()
	tools.RegisterDataTools(r, providers.NewManager())
	r.Register(&tools.Spec{
		Name: "us_options_chain",
		Desc: "US-listed options chain",
		Handler: func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
			return &models.ToolOutput{Quality: models.QualityMissing}, nil
		},
	})
	v := NewValidator(r, 15)

	plan := &models.ResearchPlan{
		Objective: "test",
		SymbolKey: "TW:2330",
		Steps: []models.ResearchStep{
			{StepID: "step_a", ToolName: "us_options_chain", Args: map[string]any{"symbol": "TW:2330"}},
		},
	}
	err := v.Validate(plan, nil)
	if err == nil {
		t.Fatal("expected market compatibility error")
	}
	for _, want := range []string{"us_options_chain", "US", "TW"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}

	// The same tool on a US plan passes.
	plan.SymbolKey = "US:AAPL"
	plan.Steps[0].Args = map[string]any{"symbol": "US:AAPL"}
	if err := v.Validate(plan, nil); err != nil {
		t.Fatalf("matching market must not be rejected: %v", err)
	}
}

func TestMarketPrefixIgnoresUnscopedTools(t *testing.T) {
	if _, scoped := marketPrefix(consts.ToolMarketQuote); scoped {
		t.Error("market_quote must not be treated as market-scoped")
	}
	if m, scoped := marketPrefix("hk_shareholding"); !scoped || m != models.MarketHK {
		t.Errorf("hk_shareholding should be HK-scoped, got %v %v", m, scoped)
	}
}

func TestRedundancyAnnotationIsNonBlocking(t *testing.T) {
	v := newTestValidator(15)

	prior := &models.PlanRecord{
		PlanID: 1,
		Steps: []models.StepState{
			{
				Step: models.ResearchStep{
					StepID:   "step_1",
					ToolName: consts.ToolMarketQuote,
					Args:     map[string]any{"symbol": "US:AAPL"},
				},
				Executed: true,
			},
		},
	}

	plan := &models.ResearchPlan{
		Objective: "again",
		SymbolKey: "US:AAPL",
		Steps: []models.ResearchStep{
			{
				StepID:   "step_1",
				ToolName: consts.ToolMarketQuote,
				Args:     map[string]any{"symbol": "US:AAPL"},
			},
		},
	}

	if err := v.Validate(plan, []*models.PlanRecord{prior}); err != nil {
		t.Fatalf("redundancy must not block: %v", err)
	}
	if !plan.Steps[0].Redundant {
		t.Fatal("step not marked redundant")
	}
	if !strings.Contains(plan.Steps[0].RedundancyReason, "plan 1") {
		t.Errorf("reason should name the earlier plan, got %q", plan.Steps[0].RedundancyReason)
	}
}

func TestUnexecutedPriorStepsAreNotRedundant(t *testing.T) {
	v := newTestValidator(15)

	prior := &models.PlanRecord{
		PlanID: 1,
		Steps: []models.StepState{
			{
				Step: models.ResearchStep{
					StepID:   "step_1",
					ToolName: consts.ToolMarketQuote,
					Args:     map[string]any{"symbol": "US:AAPL"},
				},
				Executed: false,
			},
		},
	}

	plan := &models.ResearchPlan{
		SymbolKey: "US:AAPL",
		Steps: []models.ResearchStep{
			{
				StepID:   "step_1",
				ToolName: consts.ToolMarketQuote,
				Args:     map[string]any{"symbol": "US:AAPL"},
			},
		},
	}

	if err := v.Validate(plan, []*models.PlanRecord{prior}); err != nil {
		t.Fatal(err)
	}
	if plan.Steps[0].Redundant {
		t.Error("step wrongly marked redundant against an unexecuted prior step")
	}
}
