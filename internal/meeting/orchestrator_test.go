package meeting

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/DexterGo/consts"
	"github.com/dyike/DexterGo/internal/dexter"
	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/tools"
)

// fakeModel delegates each call to fn with the running call index.
type fakeModel struct {
	fn    func(call int, in []*schema.Message) (*schema.Message, error)
	calls int
}

func (m *fakeModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	call := m.calls
	m.calls++
	return m.fn(call, in)
}

func (m *fakeModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported in tests")
}

func scripted(responses ...string) *fakeModel {
	return &fakeModel{fn: func(call int, in []*schema.Message) (*schema.Message, error) {
		if call >= len(responses) {
			call = len(responses) - 1
		}
		return schema.AssistantMessage(responses[call], nil), nil
	}}
}

// countingPlanner hands out single-step plans against the probe tool.
type countingPlanner struct {
	plans int
	steps int
}

func (p *countingPlanner) GeneratePlan(ctx context.Context, req dexter.PlanRequest) *models.ResearchPlan {
	p.plans++
	n := p.steps
	if n == 0 {
		n = 1
	}
	plan := &models.ResearchPlan{
		Objective: fmt.Sprintf("probe %d", p.plans),
		SymbolKey: req.SymbolKey.String(),
	}
	for i := 0; i < n; i++ {
		plan.Steps = append(plan.Steps, models.ResearchStep{
			StepID:   fmt.Sprintf("step_%d", i+1),
			ToolName: "probe",
			Args:     map[string]any{"symbol": req.SymbolKey.String(), "seq": p.plans},
		})
	}
	return plan
}

func probeRegistry(executed *int) *tools.Registry {
	r := tools.NewRegistry()
	r.Register(&tools.Spec{
		Name: "probe",
		Desc: "test probe",
		Handler: func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
			*executed++
			return &models.ToolOutput{Data: "probed", Quality: models.QualityEOD}, nil
		},
	})
	return r
}

type fixture struct {
	orch     *Orchestrator
	planner  *countingPlanner
	pad      *dexter.Scratchpad
	executed *int
	events   *[]models.MeetingEvent
}

func newFixture(t *testing.T, expertModel model.BaseChatModel, moderatorModel model.BaseChatModel, maxRounds, maxSteps int) *fixture {
	t.Helper()
	executed := 0
	var events []models.MeetingEvent
	registry := probeRegistry(&executed)
	planner := &countingPlanner{}
	pad := dexter.NewScratchpad("sess-test", "US:AAPL", "test query", nil)

	orch := NewOrchestrator(OrchestratorConfig{
		Planner:           planner,
		Validator:         dexter.NewValidator(registry, maxSteps),
		Registry:          registry,
		Scratchpad:        pad,
		Moderator:         NewModerator(moderatorModel),
		Experts:           []*Expert{NewExpert(consts.TechnicalExpert, expertModel)},
		MaxRounds:         maxRounds,
		MaxPlansInContext: 3,
		Observer:          func(ev models.MeetingEvent) { events = append(events, ev) },
	})
	return &fixture{orch: orch, planner: planner, pad: pad, executed: &executed, events: &events}
}

func moderatorScript() *fakeModel {
	return scripted(
		"Welcome. Let us look at Apple.",
		`["technical"]`,
		`{"title":"AAPL holds","thesis":"steady","bull_case":["momentum"],"bear_case":["valuation"],"risks":["macro"],"conclusion":"hold"}`,
	)
}

func TestMeetingEndsAfterOneQuietRound(t *testing.T) {
	expert := scripted("Trend is intact, nothing more needed.")
	f := newFixture(t, expert, moderatorScript(), 3, 15)

	report, err := f.orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "hold or sell?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Title != "AAPL holds" {
		t.Errorf("report title = %q", report.Title)
	}
	if f.planner.plans != 1 {
		t.Errorf("planner produced %d plans, want 1 (no expert requests)", f.planner.plans)
	}
	if f.orch.State() != models.StateFinished {
		t.Errorf("final state = %s", f.orch.State())
	}

	opinions := 0
	for _, msg := range f.orch.Transcript() {
		if msg.MsgType == models.MsgOpinion {
			opinions++
		}
	}
	if opinions != 1 {
		t.Errorf("got %d opinions, want 1 (early exit after quiet round)", opinions)
	}
}

func TestMeetingStopsAtMaxRounds(t *testing.T) {
	// The expert asks for more data every single round.
	expert := &fakeModel{fn: func(call int, in []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("Still unsure. <data_request>more history</data_request>", nil), nil
	}}
	f := newFixture(t, expert, moderatorScript(), 2, 15)

	report, err := f.orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "hold?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report == nil {
		t.Fatal("no report despite bounded rounds")
	}
	// Initial plan plus one replan per round, never more.
	if f.planner.plans != 3 {
		t.Errorf("planner produced %d plans, want 3 (1 initial + 2 rounds)", f.planner.plans)
	}
	if got := len(f.pad.Plans()); got != 3 {
		t.Errorf("scratchpad has %d plans, want 3", got)
	}
}

func TestIdenticalRequestsInRoundPlanOnce(t *testing.T) {
	// Both experts ask for the same data in round one, then go quiet.
	askOnce := func() *fakeModel {
		return &fakeModel{fn: func(call int, in []*schema.Message) (*schema.Message, error) {
			if call == 0 {
				return schema.AssistantMessage("Need context. <data_request>more history</data_request>", nil), nil
			}
			return schema.AssistantMessage("Satisfied now.", nil), nil
		}}
	}
	moderator := scripted(
		"Welcome.",
		`["technical","fundamental"]`,
		`{"title":"AAPL","thesis":"t","conclusion":"c"}`,
	)

	executed := 0
	var events []models.MeetingEvent
	registry := probeRegistry(&executed)
	planner := &countingPlanner{}
	pad := dexter.NewScratchpad("sess-dup", "US:AAPL", "q", nil)
	orch := NewOrchestrator(OrchestratorConfig{
		Planner:    planner,
		Validator:  dexter.NewValidator(registry, 15),
		Registry:   registry,
		Scratchpad: pad,
		Moderator:  NewModerator(moderator),
		Experts: []*Expert{
			NewExpert(consts.TechnicalExpert, askOnce()),
			NewExpert(consts.FundamentalExpert, askOnce()),
		},
		MaxRounds:         3,
		MaxPlansInContext: 3,
		Observer:          func(ev models.MeetingEvent) { events = append(events, ev) },
	})

	if _, err := orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Initial plan plus exactly one for the shared request.
	if planner.plans != 2 {
		t.Errorf("planner produced %d plans, want 2 (duplicate request must collapse)", planner.plans)
	}

	// Requests are served after the round: both round-one opinions come
	// before the expert-request plan.
	lastOpinion, requestPlan := -1, -1
	for i, ev := range events {
		switch ev.EventType {
		case models.EventMessage:
			if r, _ := ev.Payload["round"].(int); r == 1 {
				lastOpinion = i
			}
		case models.EventPlanGenerated:
			if trig, _ := ev.Payload["trigger"].(string); trig == string(models.TriggerExpertRequest) && requestPlan == -1 {
				requestPlan = i
			}
		}
	}
	if lastOpinion == -1 || requestPlan == -1 {
		t.Fatal("expected round-one opinions and an expert-request plan in the event stream")
	}
	if lastOpinion >= requestPlan {
		t.Errorf("expert-request plan at %d must follow the full round ending at %d", requestPlan, lastOpinion)
	}

	// The plan is attributed to the expert who asked first.
	recs := pad.Plans()
	if len(recs) != 2 {
		t.Fatalf("scratchpad has %d plans, want 2", len(recs))
	}
	if recs[1].Requester != consts.TechnicalExpert {
		t.Errorf("requester = %q, want %q", recs[1].Requester, consts.TechnicalExpert)
	}
}

func TestDistinctRequestsEachGetAPlan(t *testing.T) {
	expert := &fakeModel{fn: func(call int, in []*schema.Message) (*schema.Message, error) {
		if call == 0 {
			return schema.AssistantMessage(
				"<data_request>daily bars</data_request> and <data_request>recent news</data_request>", nil), nil
		}
		return schema.AssistantMessage("Done.", nil), nil
	}}
	f := newFixture(t, expert, moderatorScript(), 3, 15)

	if _, err := f.orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Initial plan plus one per distinct request in the message.
	if f.planner.plans != 3 {
		t.Errorf("planner produced %d plans, want 3", f.planner.plans)
	}
}

func TestRejectedPlanSkipsExecution(t *testing.T) {
	expert := scripted("Fine as is.")
	f := newFixture(t, expert, moderatorScript(), 1, 15)
	f.planner.steps = 20 // over the validator limit below

	orchRegistry := probeRegistry(f.executed)
	f.orch = NewOrchestrator(OrchestratorConfig{
		Planner:           f.planner,
		Validator:         dexter.NewValidator(orchRegistry, 5),
		Registry:          orchRegistry,
		Scratchpad:        f.pad,
		Moderator:         NewModerator(moderatorScript()),
		Experts:           []*Expert{NewExpert(consts.TechnicalExpert, expert)},
		MaxRounds:         1,
		MaxPlansInContext: 3,
	})

	report, err := f.orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "hold?")
	if err != nil {
		t.Fatalf("a rejected plan must not abort the meeting: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report")
	}
	if *f.executed != 0 {
		t.Errorf("rejected plan executed %d steps, want 0", *f.executed)
	}
	if got := len(f.pad.Plans()); got != 0 {
		t.Errorf("rejected plan was registered: %d records", got)
	}
}

func TestSynthesisFailureIsTerminal(t *testing.T) {
	moderator := &fakeModel{fn: func(call int, in []*schema.Message) (*schema.Message, error) {
		switch call {
		case 0:
			return schema.AssistantMessage("Welcome.", nil), nil
		case 1:
			return schema.AssistantMessage(`["technical"]`, nil), nil
		default:
			return nil, errors.New("model unavailable")
		}
	}}
	expert := scripted("All good.")
	f := newFixture(t, expert, moderator, 1, 15)

	_, err := f.orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "hold?")
	if err == nil {
		t.Fatal("synthesis failure must propagate")
	}
}

func TestObserverPanicDoesNotAbort(t *testing.T) {
	expert := scripted("Fine.")
	executed := 0
	registry := probeRegistry(&executed)
	orch := NewOrchestrator(OrchestratorConfig{
		Planner:           &countingPlanner{},
		Validator:         dexter.NewValidator(registry, 15),
		Registry:          registry,
		Scratchpad:        dexter.NewScratchpad("sess", "US:AAPL", "q", nil),
		Moderator:         NewModerator(moderatorScript()),
		Experts:           []*Expert{NewExpert(consts.TechnicalExpert, expert)},
		MaxRounds:         1,
		MaxPlansInContext: 3,
		Observer:          func(ev models.MeetingEvent) { panic("bad consumer") },
	})

	report, err := orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "hold?")
	if err != nil {
		t.Fatalf("observer panic leaked: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report")
	}
}

func TestToolEventsBracketExecution(t *testing.T) {
	expert := scripted("Done.")
	f := newFixture(t, expert, moderatorScript(), 1, 15)

	if _, err := f.orch.Run(context.Background(), models.NewSymbolKey(models.MarketUS, "AAPL"), "hold?"); err != nil {
		t.Fatal(err)
	}

	startIdx, completeIdx := -1, -1
	for i, ev := range *f.events {
		switch ev.EventType {
		case models.EventToolStart:
			if startIdx == -1 {
				startIdx = i
			}
		case models.EventToolComplete:
			if completeIdx == -1 {
				completeIdx = i
			}
		}
	}
	if startIdx == -1 || completeIdx == -1 {
		t.Fatal("tool events missing from stream")
	}
	if startIdx >= completeIdx {
		t.Errorf("tool_start at %d not before tool_complete at %d", startIdx, completeIdx)
	}
}
