package dexter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dyike/DexterGo/internal/models"
)

// EventSink receives research events and session summaries. Persistence is
// best effort: sink errors are logged, never propagated.
type EventSink interface {
	SaveEvent(ctx context.Context, ev *models.ResearchEvent) error
	SaveSession(ctx context.Context, s *models.SessionSummary) error
}

type resultKey struct {
	planID int
	stepID string
}

// Scratchpad is the shared working memory of one research session. It
// registers plans, records tool outputs and renders a bounded projection of
// both for LLM prompts. All methods are safe for concurrent use.
type Scratchpad struct {
	mu          sync.RWMutex
	sessionID   string
	symbolKey   string
	query       string
	planCounter int
	plans       []*models.PlanRecord
	results     map[resultKey]*models.ToolOutput
	toolCalls   int
	createdAt   time.Time

	sink EventSink
}

func NewScratchpad(sessionID, symbolKey, query string, sink EventSink) *Scratchpad {
	return &Scratchpad{
		sessionID: sessionID,
		symbolKey: symbolKey,
		query:     query,
		results:   make(map[resultKey]*models.ToolOutput),
		createdAt: time.Now(),
		sink:      sink,
	}
}

func (sp *Scratchpad) SessionID() string { return sp.sessionID }

// RegisterPlan assigns the next plan id and records the plan. Plan ids are
// monotonically increasing from 1 for the lifetime of the session.
func (sp *Scratchpad) RegisterPlan(plan *models.ResearchPlan, trigger models.TriggerReason, requester string) *models.PlanRecord {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.planCounter++
	steps := make([]models.StepState, len(plan.Steps))
	for i, s := range plan.Steps {
		steps[i] = models.StepState{Step: s}
	}
	rec := &models.PlanRecord{
		PlanID:        sp.planCounter,
		Objective:     plan.Objective,
		Constraints:   plan.Constraints,
		Steps:         steps,
		SymbolKey:     plan.SymbolKey,
		TriggerReason: trigger,
		Requester:     requester,
		CreatedAt:     time.Now(),
	}
	sp.plans = append(sp.plans, rec)
	return rec
}

// RecordResult stores one step's output and marks the step executed. Results
// are keyed on (plan id, step id) because step ids repeat across plans.
// Re-recording a step replaces its earlier output.
func (sp *Scratchpad) RecordResult(ctx context.Context, planID int, stepID string, out *models.ToolOutput) {
	sp.mu.Lock()
	sp.results[resultKey{planID, stepID}] = out
	sp.toolCalls++
	var rec *models.PlanRecord
	for _, p := range sp.plans {
		if p.PlanID == planID {
			rec = p
			break
		}
	}
	if rec != nil {
		for i := range rec.Steps {
			if rec.Steps[i].Step.StepID == stepID {
				rec.Steps[i].Executed = true
				rec.Steps[i].Quality = out.Quality
				break
			}
		}
	}
	sp.mu.Unlock()

	sp.persistEvent(ctx, rec, planID, stepID, out)
}

func (sp *Scratchpad) persistEvent(ctx context.Context, rec *models.PlanRecord, planID int, stepID string, out *models.ToolOutput) {
	if sp.sink == nil || rec == nil {
		return
	}
	var step *models.ResearchStep
	for i := range rec.Steps {
		if rec.Steps[i].Step.StepID == stepID {
			step = &rec.Steps[i].Step
			break
		}
	}
	if step == nil {
		return
	}
	ev := &models.ResearchEvent{
		SessionID:      sp.sessionID,
		PlanID:         planID,
		StepID:         stepID,
		SymbolKey:      sp.symbolKey,
		ToolName:       step.ToolName,
		Args:           step.Args,
		Data:           out.Data,
		Quality:        out.Quality,
		SourceProvider: out.SourceProvider,
		Message:        out.Message,
		Requester:      rec.Requester,
		TriggerReason:  rec.TriggerReason,
		Timestamp:      time.Now(),
	}
	if err := sp.sink.SaveEvent(ctx, ev); err != nil {
		log.Printf("Failed to persist research event %d/%s: %v", planID, stepID, err)
	}
}

// Result returns the recorded output for one step, if any.
func (sp *Scratchpad) Result(planID int, stepID string) (*models.ToolOutput, bool) {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out, ok := sp.results[resultKey{planID, stepID}]
	return out, ok
}

// MarkPlanExecuted flags a plan as fully processed.
func (sp *Scratchpad) MarkPlanExecuted(planID int) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for _, p := range sp.plans {
		if p.PlanID == planID {
			p.Executed = true
			return
		}
	}
}

// Plans returns the registered plan records in creation order.
func (sp *Scratchpad) Plans() []*models.PlanRecord {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out := make([]*models.PlanRecord, len(sp.plans))
	copy(out, sp.plans)
	return out
}

// TotalToolCalls counts every recorded step result, replacements included.
func (sp *Scratchpad) TotalToolCalls() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.toolCalls
}

// FormatForLLM renders the last maxPlans plans with summarized step results.
// Raw payloads never enter the prompt; lists collapse to counts, maps to
// their leading keys and long strings are truncated.
func (sp *Scratchpad) FormatForLLM(maxPlans int) string {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	if len(sp.plans) == 0 {
		return "No research has been executed yet."
	}

	plans := sp.plans
	if maxPlans > 0 && len(plans) > maxPlans {
		plans = plans[len(plans)-maxPlans:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Research scratchpad for %s (%d plans total, showing last %d):\n",
		sp.symbolKey, len(sp.plans), len(plans))
	for _, p := range plans {
		fmt.Fprintf(&b, "\nPlan %d [%s]", p.PlanID, p.TriggerReason)
		if p.Requester != "" {
			fmt.Fprintf(&b, " (requested by %s)", p.Requester)
		}
		fmt.Fprintf(&b, ": %s\n", p.Objective)
		for _, st := range p.Steps {
			status := "pending"
			out, haveResult := sp.results[resultKey{p.PlanID, st.Step.StepID}]
			if st.Executed {
				status = string(st.Quality)
				if haveResult && out.SourceProvider != "" {
					status += " via " + out.SourceProvider
				}
			}
			if st.Step.Redundant {
				status += ", redundant"
			}
			fmt.Fprintf(&b, "  - %s %s (%s): ", st.Step.StepID, st.Step.ToolName, status)
			if haveResult {
				if out.Message != "" {
					b.WriteString(out.Message)
				} else {
					b.WriteString(summarizeValue(out.Data))
				}
			} else {
				b.WriteString("no result")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

const (
	summaryMaxKeys   = 5
	summaryMaxString = 200
)

// summarizeValue keeps prompt contributions small and shape-revealing.
func summarizeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "empty"
	case string:
		if len(val) > summaryMaxString {
			return val[:summaryMaxString] + "..."
		}
		return val
	case []any:
		return fmt.Sprintf("[%d items]", len(val))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > summaryMaxKeys {
			keys = keys[:summaryMaxKeys]
		}
		return fmt.Sprintf("{%s}", strings.Join(keys, ", "))
	default:
		s := fmt.Sprintf("%v", val)
		if len(s) > summaryMaxString {
			return s[:summaryMaxString] + "..."
		}
		return s
	}
}

// Summary snapshots the session for persistence.
func (sp *Scratchpad) Summary() *models.SessionSummary {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	plans := make([]models.PlanRecord, len(sp.plans))
	for i, p := range sp.plans {
		plans[i] = *p
	}
	return &models.SessionSummary{
		SessionID:      sp.sessionID,
		SymbolKey:      sp.symbolKey,
		Query:          sp.query,
		Plans:          plans,
		TotalToolCalls: sp.toolCalls,
		CreatedAt:      sp.createdAt,
		UpdatedAt:      time.Now(),
	}
}

// Sync persists the session summary. Best effort, like event writes.
func (sp *Scratchpad) Sync(ctx context.Context) {
	if sp.sink == nil {
		return
	}
	if err := sp.sink.SaveSession(ctx, sp.Summary()); err != nil {
		log.Printf("Failed to sync session %s: %v", sp.sessionID, err)
	}
}

// SaveToFile dumps the full session state as indented JSON.
func (sp *Scratchpad) SaveToFile(path string) error {
	summary := sp.Summary()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
