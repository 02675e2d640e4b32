package meeting

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
)

// Moderator opens the meeting, decides which experts speak and writes the
// final report.
type Moderator struct {
	model model.BaseChatModel
}

func NewModerator(m model.BaseChatModel) *Moderator {
	return &Moderator{model: m}
}

// Opening produces the moderator's framing statement. A model failure falls
// back to a plain statement so the meeting always starts.
func (m *Moderator) Opening(ctx context.Context, symbol, query string) *models.AgentMessage {
	content := fmt.Sprintf("We are convened to assess %s. The question on the table: %s", symbol, query)

	resp, err := m.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(`You moderate an investment research meeting. In two or three
sentences, frame the question for the expert panel. No analysis of your own.`),
		schema.UserMessage(fmt.Sprintf("Symbol: %s\nQuestion: %s", symbol, query)),
	})
	if err != nil {
		log.Printf("Moderator opening failed, using plain framing: %v", err)
	} else if strings.TrimSpace(resp.Content) != "" {
		content = resp.Content
	}

	return &models.AgentMessage{
		AgentID:   consts.Moderator,
		AgentName: consts.Agent_Moderator,
		Role:      models.RoleModerator,
		Content:   content,
		MsgType:   models.MsgOpening,
		Timestamp: time.Now(),
	}
}

// SelectExperts asks the model which seats the question needs. Unknown roles
// and failures degrade to the full panel in canonical order.
func (m *Moderator) SelectExperts(ctx context.Context, query string) []string {
	resp, err := m.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(`Pick the experts a research question needs from: %s.
Respond with ONLY a JSON array of role names, e.g. ["technical","risk"].`,
			strings.Join(consts.ExpertRoles, ", "))),
		schema.UserMessage(query),
	})
	if err != nil {
		log.Printf("Expert selection failed, seating full panel: %v", err)
		return consts.ExpertRoles
	}

	var picked []string
	payload := extractJSONArray(resp.Content)
	if payload == "" || json.Unmarshal([]byte(payload), &picked) != nil {
		log.Printf("Unparseable expert selection %q, seating full panel", resp.Content)
		return consts.ExpertRoles
	}

	// Preserve canonical speaking order regardless of how the model lists them.
	chosen := make(map[string]bool, len(picked))
	for _, role := range picked {
		chosen[role] = true
	}
	var roles []string
	for _, role := range consts.ExpertRoles {
		if chosen[role] {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return consts.ExpertRoles
	}
	return roles
}

const synthesisPrompt = `You are the moderator closing an investment research meeting.
Synthesize the research and the expert discussion into a report.

Respond with ONLY a JSON object:
{
  "title": "one-line headline",
  "thesis": "the central argument in one paragraph",
  "bull_case": ["point", ...],
  "bear_case": ["point", ...],
  "risks": ["risk", ...],
  "conclusion": "the answer to the original question"
}`

// Synthesize writes the final report. A model failure is the one error this
// package propagates: without synthesis the meeting has no outcome.
func (m *Moderator) Synthesize(ctx context.Context, symbol, query, research string, transcript []models.AgentMessage) (*models.StructuredReport, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Symbol: %s\nOriginal question: %s\n\nResearch:\n%s\n", symbol, query, research)
	if len(transcript) > 0 {
		user.WriteString("\nExpert discussion:\n")
		for _, msg := range transcript {
			fmt.Fprintf(&user, "[%s, round %d] %s\n", msg.AgentName, msg.Round, msg.Content)
		}
	}

	resp, err := m.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(synthesisPrompt),
		schema.UserMessage(user.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize report: %w", err)
	}

	report := &models.StructuredReport{
		SymbolKey:   symbol,
		GeneratedAt: time.Now(),
	}
	payload := extractJSONObject(resp.Content)
	if payload == "" || json.Unmarshal([]byte(payload), report) != nil {
		// The model answered but not in shape; keep the text as the thesis.
		log.Printf("Synthesis response not structured, keeping raw text")
		report.Title = fmt.Sprintf("Research report: %s", symbol)
		report.Thesis = strings.TrimSpace(resp.Content)
		report.Conclusion = "See thesis."
	}
	report.SymbolKey = symbol
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	return report, nil
}

func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
