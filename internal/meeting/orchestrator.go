package meeting

import (
	"context"
	"log"
	"time"

	"github.com/dyike/DexterGo/internal/dexter"
	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/tools"
)

// Observer receives the session's ordered event stream. A misbehaving
// observer never aborts the session.
type Observer func(models.MeetingEvent)

// Orchestrator drives one research meeting through its states:
// INIT -> PLAN -> VALIDATE -> EXECUTE -> DISCUSS -> SYNTHESIZE -> FINISHED.
// Expert data requests re-enter PLAN a bounded number of times.
type Orchestrator struct {
	planner   dexter.Planner
	validator *dexter.Validator
	registry  *tools.Registry
	pad       *dexter.Scratchpad
	moderator *Moderator
	experts   []*Expert

	maxRounds     int
	maxPlansInCtx int

	state      models.MeetingState
	observer   Observer
	transcript []models.AgentMessage
}

type OrchestratorConfig struct {
	Planner           dexter.Planner
	Validator         *dexter.Validator
	Registry          *tools.Registry
	Scratchpad        *dexter.Scratchpad
	Moderator         *Moderator
	Experts           []*Expert
	MaxRounds         int
	MaxPlansInContext int
	Observer          Observer
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		planner:       cfg.Planner,
		validator:     cfg.Validator,
		registry:      cfg.Registry,
		pad:           cfg.Scratchpad,
		moderator:     cfg.Moderator,
		experts:       cfg.Experts,
		maxRounds:     cfg.MaxRounds,
		maxPlansInCtx: cfg.MaxPlansInContext,
		observer:      cfg.Observer,
		state:         models.StateInit,
	}
}

func (o *Orchestrator) State() models.MeetingState { return o.state }

// Transcript returns the meeting messages so far.
func (o *Orchestrator) Transcript() []models.AgentMessage {
	out := make([]models.AgentMessage, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// Run conducts the full meeting. The only error it returns is a synthesis
// failure; every earlier stage degrades instead of aborting.
func (o *Orchestrator) Run(ctx context.Context, symbol models.SymbolKey, query string) (*models.StructuredReport, error) {
	sym := symbol.String()

	o.setState(models.StateInit)
	opening := o.moderator.Opening(ctx, sym, query)
	o.say(opening)

	seated := o.seatExperts(ctx, query)

	o.runPlanCycle(ctx, dexter.PlanRequest{
		Query:     query,
		SymbolKey: symbol,
		Trigger:   models.TriggerInitial,
		Requester: opening.AgentID,
	})

	o.setState(models.StateDiscuss)
	for round := 1; round <= o.maxRounds; round++ {
		requested := o.discussionRound(ctx, seated, symbol, query, round)
		if !requested {
			break
		}
	}

	o.setState(models.StateSynthesize)
	report, err := o.moderator.Synthesize(ctx, sym, query,
		o.pad.FormatForLLM(o.maxPlansInCtx), o.transcript)
	if err != nil {
		return nil, err
	}
	o.emit(models.EventReport, map[string]any{"report": report})

	o.setState(models.StateFinished)
	o.emit(models.EventFinished, map[string]any{
		"session_id": o.pad.SessionID(),
		"tool_calls": o.pad.TotalToolCalls(),
	})
	o.pad.Sync(ctx)
	return report, nil
}

// discussionRound lets every seated expert speak once, then serves the data
// requests collected across the whole round. Identical requests from several
// experts plan once, attributed to whoever asked first. Reports whether the
// round raised any request.
func (o *Orchestrator) discussionRound(ctx context.Context, seated []*Expert, symbol models.SymbolKey, query string, round int) bool {
	type dataRequest struct {
		requester string
		request   string
	}
	var pending []dataRequest
	seen := make(map[string]bool)

	for _, expert := range seated {
		research := o.pad.FormatForLLM(o.maxPlansInCtx)
		msg, err := expert.Opinion(ctx, symbol.String(), query, research, o.transcript, round)
		if err != nil {
			log.Printf("Expert %s failed in round %d, skipping: %v", expert.Role, round, err)
			continue
		}

		reqs := ScanDataRequests(msg.Content)
		msg.Content = StripDataRequest(msg.Content)
		o.say(msg)

		for _, req := range reqs {
			if seen[req] {
				continue
			}
			seen[req] = true
			pending = append(pending, dataRequest{requester: expert.Role, request: req})
		}
	}

	for _, dr := range pending {
		o.emit(models.EventStatus, map[string]any{
			"status":    "data_request",
			"requester": dr.requester,
			"request":   dr.request,
		})
		o.runPlanCycle(ctx, dexter.PlanRequest{
			Query:       query,
			SymbolKey:   symbol,
			Trigger:     models.TriggerExpertRequest,
			Requester:   dr.requester,
			DataRequest: dr.request,
		})
	}
	if len(pending) > 0 {
		o.setState(models.StateDiscuss)
	}
	return len(pending) > 0
}

// runPlanCycle is one PLAN -> VALIDATE -> EXECUTE pass. A rejected plan skips
// execution; a failed step is recorded as missing data. Nothing here aborts
// the meeting.
func (o *Orchestrator) runPlanCycle(ctx context.Context, req dexter.PlanRequest) {
	o.setState(models.StatePlan)
	req.Context = o.pad.FormatForLLM(o.maxPlansInCtx)
	plan := o.planner.GeneratePlan(ctx, req)
	o.emit(models.EventPlanGenerated, map[string]any{
		"objective": plan.Objective,
		"steps":     len(plan.Steps),
		"trigger":   string(req.Trigger),
	})

	o.setState(models.StateValidate)
	if err := o.validator.Validate(plan, o.pad.Plans()); err != nil {
		log.Printf("Plan rejected, skipping execution: %v", err)
		o.emit(models.EventStatus, map[string]any{
			"status": "plan_rejected",
			"reason": err.Error(),
		})
		return
	}

	rec := o.pad.RegisterPlan(plan, req.Trigger, req.Requester)

	o.setState(models.StateExecute)
	for _, step := range plan.Steps {
		if step.Redundant {
			o.emit(models.EventStatus, map[string]any{
				"status":  "step_skipped",
				"step_id": step.StepID,
				"reason":  step.RedundancyReason,
			})
			continue
		}

		o.emit(models.EventToolStart, map[string]any{
			"plan_id": rec.PlanID,
			"step_id": step.StepID,
			"tool":    step.ToolName,
		})

		out, err := o.registry.Execute(ctx, step.ToolName, step.Args)
		if err != nil {
			out = &models.ToolOutput{
				Quality: models.QualityMissing,
				Message: err.Error(),
			}
			o.emit(models.EventToolError, map[string]any{
				"plan_id": rec.PlanID,
				"step_id": step.StepID,
				"tool":    step.ToolName,
				"error":   err.Error(),
			})
		} else {
			o.emit(models.EventToolComplete, map[string]any{
				"plan_id": rec.PlanID,
				"step_id": step.StepID,
				"tool":    step.ToolName,
				"quality": string(out.Quality),
			})
		}
		o.pad.RecordResult(ctx, rec.PlanID, step.StepID, out)
	}

	o.pad.MarkPlanExecuted(rec.PlanID)
	o.pad.Sync(ctx)
}

func (o *Orchestrator) seatExperts(ctx context.Context, query string) []*Expert {
	roles := o.moderator.SelectExperts(ctx, query)
	want := make(map[string]bool, len(roles))
	for _, role := range roles {
		want[role] = true
	}
	var seated []*Expert
	for _, e := range o.experts {
		if want[e.Role] {
			seated = append(seated, e)
		}
	}
	if len(seated) == 0 {
		return o.experts
	}
	return seated
}

func (o *Orchestrator) say(msg *models.AgentMessage) {
	o.transcript = append(o.transcript, *msg)
	o.emit(models.EventMessage, map[string]any{
		"agent":    msg.AgentName,
		"role":     string(msg.Role),
		"content":  msg.Content,
		"msg_type": string(msg.MsgType),
		"round":    msg.Round,
	})
}

func (o *Orchestrator) setState(s models.MeetingState) {
	o.state = s
	o.emit(models.EventStatus, map[string]any{"status": "state", "state": string(s)})
}

// emit delivers one event to the observer. Observer panics are contained so a
// broken consumer cannot take the session down.
func (o *Orchestrator) emit(eventType string, payload map[string]any) {
	if o.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Observer panic on %s event: %v", eventType, r)
		}
	}()
	o.observer(models.MeetingEvent{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
