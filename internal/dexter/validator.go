package dexter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/tools"
)

// Validator checks plans against hard bounds before execution and annotates
// soft issues. Hard failures reject the whole plan; redundancy is advisory
// and never blocks.
type Validator struct {
	registry *tools.Registry
	maxSteps int
}

func NewValidator(registry *tools.Registry, maxSteps int) *Validator {
	return &Validator{registry: registry, maxSteps: maxSteps}
}

// Validate rejects oversized plans, unknown tools and symbol drift, and marks
// steps that repeat already-executed work. The redundancy annotation mutates
// the plan in place.
func (v *Validator) Validate(plan *models.ResearchPlan, prior []*models.PlanRecord) error {
	if len(plan.Steps) > v.maxSteps {
		return fmt.Errorf("plan has %d steps, limit is %d", len(plan.Steps), v.maxSteps)
	}

	planSymbol := plan.SymbolKey
	var planMarket models.MarketType
	if planSymbol != "" {
		key, err := models.ParseSymbolKey(planSymbol)
		if err != nil {
			return fmt.Errorf("plan symbol invalid: %w", err)
		}
		planMarket = key.Market
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if !v.registry.Has(step.ToolName) {
			return fmt.Errorf("step %s references unknown tool %q", step.StepID, step.ToolName)
		}
		if m, scoped := marketPrefix(step.ToolName); scoped && planMarket != "" && m != planMarket {
			return fmt.Errorf("step %s uses %s-only tool %q in a %s plan", step.StepID, m, step.ToolName, planMarket)
		}
		if sym, ok := step.Args["symbol"].(string); ok && planSymbol != "" && sym != planSymbol {
			return fmt.Errorf("step %s targets symbol %q but the plan is about %q", step.StepID, sym, planSymbol)
		}
		if sym, ok := step.Args["symbol"].(string); ok {
			if _, err := models.ParseSymbolKey(sym); err != nil {
				return fmt.Errorf("step %s: %w", step.StepID, err)
			}
		}
	}

	v.annotateRedundancy(plan, prior)
	return nil
}

// annotateRedundancy flags steps whose tool and arguments match a step that
// already executed in an earlier plan.
func (v *Validator) annotateRedundancy(plan *models.ResearchPlan, prior []*models.PlanRecord) {
	type executed struct {
		planID int
		stepID string
	}
	seen := make(map[string]executed)
	for _, rec := range prior {
		for _, st := range rec.Steps {
			if !st.Executed {
				continue
			}
			seen[stepFingerprint(st.Step.ToolName, st.Step.Args)] = executed{rec.PlanID, st.Step.StepID}
		}
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if prev, dup := seen[stepFingerprint(step.ToolName, step.Args)]; dup {
			step.Redundant = true
			step.RedundancyReason = fmt.Sprintf("already executed as plan %d step %s", prev.planID, prev.stepID)
		}
	}
}

// marketPrefix reports whether a tool name is scoped to one market via a
// "us_"/"hk_"/"cn_"/"tw_" prefix.
func marketPrefix(toolName string) (models.MarketType, bool) {
	head, _, ok := strings.Cut(toolName, "_")
	if !ok {
		return "", false
	}
	m := models.MarketType(strings.ToUpper(head))
	if !m.Valid() {
		return "", false
	}
	return m, true
}

func stepFingerprint(tool string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", args))
	}
	return tool + ":" + string(data)
}
