package meeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/DexterGo/consts"
	"github.com/dyike/DexterGo/internal/models"
)

// Expert is one analyst seat in the meeting. All experts share the same
// mechanics and differ only in their charter prompt.
type Expert struct {
	Role  string
	Name  string
	model model.BaseChatModel
}

var expertCharters = map[string]string{
	consts.TechnicalExpert: `You are the technical analyst. Judge the symbol from price action:
trend, momentum, support and resistance levels, volume behavior. Ground every
claim in the bars and quotes from the research below.`,
	consts.FundamentalExpert: `You are the fundamentals analyst. Judge the symbol from the business:
what the company does, its exchange and market context, and what recent news
implies about earnings power and competitive position.`,
	consts.SentimentExpert: `You are the sentiment analyst. Judge how the market currently feels
about the symbol from news tone and the sentiment signal in the research below.
Separate narrative from evidence.`,
	consts.RiskExpert: `You are the risk analyst. Identify what could go wrong: data gaps in
the research, concentration and liquidity concerns, headline risks. Be the
skeptic in the room.`,
}

const expertInstructions = `Give your opinion in under 200 words.

If the research is missing data you genuinely need, include exactly one request:
<data_request>describe the data you need</data_request>
Only ask when the existing research cannot answer the question. If you have
what you need, do not include a data request.`

func NewExpert(role string, m model.BaseChatModel) *Expert {
	return &Expert{
		Role:  role,
		Name:  consts.ExpertDisplayName(role),
		model: m,
	}
}

// NewExpertPanel builds the default four-seat panel in fixed speaking order.
func NewExpertPanel(m model.BaseChatModel) []*Expert {
	panel := make([]*Expert, 0, len(consts.ExpertRoles))
	for _, role := range consts.ExpertRoles {
		panel = append(panel, NewExpert(role, m))
	}
	return panel
}

// Opinion produces the expert's contribution for one discussion round.
func (e *Expert) Opinion(ctx context.Context, symbol, query, research string, transcript []models.AgentMessage, round int) (*models.AgentMessage, error) {
	charter, ok := expertCharters[e.Role]
	if !ok {
		return nil, fmt.Errorf("no charter for role %q", e.Role)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Symbol: %s\nQuestion: %s\nDiscussion round: %d\n", symbol, query, round)
	fmt.Fprintf(&user, "\nResearch so far:\n%s\n", research)
	if len(transcript) > 0 {
		user.WriteString("\nWhat the others have said:\n")
		for _, msg := range transcript {
			fmt.Fprintf(&user, "[%s] %s\n", msg.AgentName, msg.Content)
		}
	}

	resp, err := e.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(charter + "\n\n" + expertInstructions),
		schema.UserMessage(user.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("%s opinion: %w", e.Role, err)
	}

	return &models.AgentMessage{
		AgentID:   e.Role,
		AgentName: e.Name,
		Role:      models.MessageRole(e.Role),
		Content:   resp.Content,
		MsgType:   models.MsgOpinion,
		Round:     round,
		Timestamp: time.Now(),
	}, nil
}
