package dexter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyike/DexterGo/internal/models"
)

type recordingSink struct {
	events   []*models.ResearchEvent
	sessions []*models.SessionSummary
	fail     bool
}

func (s *recordingSink) SaveEvent(ctx context.Context, ev *models.ResearchEvent) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) SaveSession(ctx context.Context, sum *models.SessionSummary) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.sessions = append(s.sessions, sum)
	return nil
}

func TestPlanIDsAreMonotonic(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "q", nil)
	for want := 1; want <= 3; want++ {
		rec := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "moderator")
		if rec.PlanID != want {
			t.Fatalf("plan id = %d, want %d", rec.PlanID, want)
		}
	}
}

func aaplKey() models.SymbolKey {
	return models.NewSymbolKey(models.MarketUS, "AAPL")
}

func TestResultsKeyedByPlanAndStep(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "q", nil)
	ctx := context.Background()

	p1 := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "")
	p2 := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerExpertRequest, "technical_expert")

	sp.RecordResult(ctx, p1.PlanID, "step_1", &models.ToolOutput{Data: "first", Quality: models.QualityRealtime})
	sp.RecordResult(ctx, p2.PlanID, "step_1", &models.ToolOutput{Data: "second", Quality: models.QualityEOD})

	out1, ok := sp.Result(p1.PlanID, "step_1")
	if !ok || out1.Data != "first" {
		t.Fatalf("plan 1 step_1 = %v, want first", out1)
	}
	out2, ok := sp.Result(p2.PlanID, "step_1")
	if !ok || out2.Data != "second" {
		t.Fatalf("plan 2 step_1 = %v, want second", out2)
	}
}

func TestRecordResultReplacesOnReexecution(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "q", nil)
	ctx := context.Background()
	p := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "")

	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{Data: "stale", Quality: models.QualityDelayed})
	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{Data: "fresh", Quality: models.QualityRealtime})

	out, _ := sp.Result(p.PlanID, "step_1")
	if out.Data != "fresh" {
		t.Errorf("result = %v, want fresh after replacement", out.Data)
	}
	if sp.TotalToolCalls() != 2 {
		t.Errorf("TotalToolCalls = %d, want 2", sp.TotalToolCalls())
	}
}

func TestFormatForLLMWindowsPlans(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "q", nil)
	for i := 0; i < 5; i++ {
		sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerIteration, "")
	}

	text := sp.FormatForLLM(3)
	if strings.Contains(text, "Plan 1 ") || strings.Contains(text, "Plan 2 ") {
		t.Errorf("old plans leaked into the window:\n%s", text)
	}
	for _, want := range []string{"Plan 3", "Plan 4", "Plan 5"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %s in projection:\n%s", want, text)
		}
	}
	if !strings.Contains(text, "5 plans total") {
		t.Errorf("total plan count missing:\n%s", text)
	}
}

func TestFormatForLLMSummarizesPayloads(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "q", nil)
	ctx := context.Background()
	p := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "")

	big := make([]any, 500)
	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{Data: big, Quality: models.QualityEOD})
	sp.RecordResult(ctx, p.PlanID, "step_2", &models.ToolOutput{
		Data:    map[string]any{"alpha": 1, "beta": 2, "gamma": 3, "delta": 4, "epsilon": 5, "zeta": 6},
		Quality: models.QualityEOD,
	})
	sp.RecordResult(ctx, p.PlanID, "step_3", &models.ToolOutput{
		Data:    strings.Repeat("x", 1000),
		Quality: models.QualityDelayed,
	})

	text := sp.FormatForLLM(0)
	if !strings.Contains(text, "[500 items]") {
		t.Errorf("list not collapsed to count:\n%s", text)
	}
	if strings.Contains(text, "zeta") {
		t.Errorf("map keys not truncated:\n%s", text)
	}
	if strings.Contains(text, strings.Repeat("x", 300)) {
		t.Errorf("long string not truncated")
	}
}

func TestFormatForLLMShowsRequesterAndSource(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "q", nil)
	ctx := context.Background()

	p := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerExpertRequest, "technical")
	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{
		Data:           "ok",
		Quality:        models.QualityRealtime,
		SourceProvider: "yahoo",
	})

	got := sp.FormatForLLM(3)
	if !strings.Contains(got, "requested by technical") {
		t.Errorf("projection misses the requester:\n%s", got)
	}
	if !strings.Contains(got, "via yahoo") {
		t.Errorf("executed step misses its serving provider:\n%s", got)
	}
	if !strings.Contains(got, "pending") {
		t.Errorf("unexecuted steps should render as pending:\n%s", got)
	}
}

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{fail: true}
	sp := NewScratchpad("sess", "US:AAPL", "q", sink)
	ctx := context.Background()
	p := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "")

	// Must not panic or surface the sink error anywhere.
	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{Data: "ok", Quality: models.QualityRealtime})
	sp.Sync(ctx)

	if out, ok := sp.Result(p.PlanID, "step_1"); !ok || out.Data != "ok" {
		t.Fatal("result lost when sink failed")
	}
}

func TestEventsReachSink(t *testing.T) {
	sink := &recordingSink{}
	sp := NewScratchpad("sess", "US:AAPL", "q", sink)
	ctx := context.Background()
	p := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "moderator")

	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{Data: "ok", Quality: models.QualityRealtime, SourceProvider: "yahoo"})

	if len(sink.events) != 1 {
		t.Fatalf("sink received %d events, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.PlanID != p.PlanID || ev.StepID != "step_1" {
		t.Errorf("event key = (%d, %s), want (%d, step_1)", ev.PlanID, ev.StepID, p.PlanID)
	}
	if ev.ToolName == "" || ev.SourceProvider != "yahoo" {
		t.Errorf("event missing tool metadata: %+v", ev)
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	sp := NewScratchpad("sess", "US:AAPL", "is apple a buy", nil)
	ctx := context.Background()
	p := sp.RegisterPlan(FallbackPlan(aaplKey(), ""), models.TriggerInitial, "")
	sp.RecordResult(ctx, p.PlanID, "step_1", &models.ToolOutput{Data: "ok", Quality: models.QualityRealtime})

	path := filepath.Join(t.TempDir(), "results", "sess.json")
	if err := sp.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "is apple a buy") {
		t.Error("saved file missing session query")
	}
}
