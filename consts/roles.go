package consts

const (
	// Meeting participants
	Moderator          = "moderator"
	TechnicalExpert    = "technical"
	FundamentalExpert  = "fundamental"
	SentimentExpert    = "sentiment"
	RiskExpert         = "risk"

	// Display names
	Agent_Moderator         = "Moderator"
	Agent_TechnicalExpert   = "Technical Analyst"
	Agent_FundamentalExpert = "Fundamentals Analyst"
	Agent_SentimentExpert   = "Sentiment Analyst"
	Agent_RiskExpert        = "Risk Analyst"
)

// ExpertRoles is the fixed participant vocabulary the moderator selects from.
var ExpertRoles = []string{TechnicalExpert, FundamentalExpert, SentimentExpert, RiskExpert}

// ExpertDisplayName maps a role to its display name.
func ExpertDisplayName(role string) string {
	switch role {
	case Moderator:
		return Agent_Moderator
	case TechnicalExpert:
		return Agent_TechnicalExpert
	case FundamentalExpert:
		return Agent_FundamentalExpert
	case SentimentExpert:
		return Agent_SentimentExpert
	case RiskExpert:
		return Agent_RiskExpert
	}
	return role
}
