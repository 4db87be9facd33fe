package capability

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"homeline/internal/domain"
)

// SimPropertyAnalyzer scores a listing by completeness. Deterministic: the
// same snapshot always yields the same verdict.
type SimPropertyAnalyzer struct{}

func (SimPropertyAnalyzer) Analyze(_ context.Context, p domain.PropertySnapshot) (Assessment, error) {
	score := 100
	var issues []string
	deduct := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}
	if strings.TrimSpace(p.Title) == "" {
		deduct(20, "title is missing")
	} else if len(p.Title) < 10 {
		deduct(5, "title is too short to market")
	}
	if strings.TrimSpace(p.Address) == "" {
		deduct(30, "address is missing")
	}
	if p.Price <= 0 {
		deduct(40, "asking price is missing or zero")
	}
	if len(strings.TrimSpace(p.Description)) < 50 {
		deduct(10, "description is missing or too thin")
	}
	if len(p.Images) == 0 {
		deduct(10, "no photos attached")
	}
	if p.Bedrooms == 0 {
		deduct(5, "bedroom count not set")
	}
	if p.Bathrooms == 0 {
		deduct(5, "bathroom count not set")
	}
	if p.AreaSqm == 0 {
		deduct(5, "surface area not set")
	}
	if score < 0 {
		score = 0
	}
	return Assessment{Score: score, Issues: issues}, nil
}

// SimMarketData serves canned comparables per city with a workspace fallback.
type SimMarketData struct {
	Fallback  MarketStats
	Overrides map[string]MarketStats
}

func (m SimMarketData) Comparables(_ context.Context, city string) (MarketStats, error) {
	key := strings.ToLower(strings.TrimSpace(city))
	if m.Overrides != nil {
		if stats, ok := m.Overrides[key]; ok {
			return stats, nil
		}
	}
	builtin := map[string]MarketStats{
		"lisbon":    {AveragePrice: 420000, Tolerance: 0.15},
		"porto":     {AveragePrice: 310000, Tolerance: 0.15},
		"madrid":    {AveragePrice: 390000, Tolerance: 0.12},
		"barcelona": {AveragePrice: 450000, Tolerance: 0.12},
	}
	if stats, ok := builtin[key]; ok {
		return stats, nil
	}
	if m.Fallback.AveragePrice > 0 {
		return m.Fallback, nil
	}
	return MarketStats{AveragePrice: 450000, Tolerance: 0.15}, nil
}

// SimLeadSource fabricates a small batch of inbound inquiries per property.
type SimLeadSource struct {
	Now func() time.Time
}

func (s *SimLeadSource) Fetch(_ context.Context, propertyID string) ([]domain.Lead, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	return []domain.Lead{
		{
			ID:        uuid.NewString(),
			Name:      "Marta Silva",
			Email:     "marta.silva@example.com",
			Source:    "portal",
			Message:   "I am pre-approved for a mortgage and would like to visit this week.",
			Status:    "new",
			CreatedAt: ts,
		},
		{
			ID:        uuid.NewString(),
			Name:      "Jonas Weber",
			Email:     "j.weber@example.com",
			Source:    "website",
			Message:   "Cash buyer, is the price negotiable? My budget is firm.",
			Status:    "new",
			CreatedAt: ts,
		},
		{
			ID:        uuid.NewString(),
			Name:      "Ana Costa",
			Phone:     "+351900000001",
			Source:    "social",
			Message:   "Just curious about the neighbourhood, nothing concrete yet.",
			Status:    "new",
			CreatedAt: ts,
		},
	}, nil
}

// SimLeadScorer scores intent by keyword, bounded to 0..100.
type SimLeadScorer struct{}

func (SimLeadScorer) Score(_ context.Context, lead domain.Lead, conv domain.LeadConversation) (int, error) {
	score := 40
	text := strings.ToLower(lead.Message)
	for _, m := range conv.Messages {
		if m.Role == "human" {
			text += " " + strings.ToLower(m.Content)
		}
	}
	for kw, points := range map[string]int{
		"pre-approved": 30,
		"cash":         30,
		"mortgage":     15,
		"visit":        15,
		"budget":       10,
		"offer":        20,
		"just curious": -25,
		"not sure":     -10,
	} {
		if strings.Contains(text, kw) {
			score += points
		}
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}

// SimOfferAnalyzer recommends on two axes: the offer against asking price and
// against market comparables. Acceptance is only ever a recommendation.
type SimOfferAnalyzer struct{}

func (SimOfferAnalyzer) Assess(_ context.Context, oc OfferContext) (OfferAssessment, error) {
	if oc.AskingPrice <= 0 {
		return OfferAssessment{}, fmt.Errorf("asking price must be positive, got %.2f", oc.AskingPrice)
	}
	ratio := oc.Offer.Amount / oc.AskingPrice
	marketRatio := 0.0
	if oc.Market.AveragePrice > 0 {
		marketRatio = oc.Offer.Amount / oc.Market.AveragePrice
	}
	switch {
	case ratio >= 0.90:
		return OfferAssessment{
			Recommendation: RecommendAccept,
			Reasons:        []string{fmt.Sprintf("offer is %.0f%% of asking price", ratio*100)},
		}, nil
	case ratio < 0.75:
		return OfferAssessment{
			Recommendation: RecommendReject,
			Reasons:        []string{fmt.Sprintf("offer is only %.0f%% of asking price", ratio*100)},
		}, nil
	case marketRatio > 0 && marketRatio < 0.70:
		return OfferAssessment{
			Recommendation: RecommendReject,
			Reasons:        []string{fmt.Sprintf("offer is %.0f%% of market average for the area", marketRatio*100)},
		}, nil
	default:
		counter := math.Round((oc.AskingPrice+oc.Offer.Amount)/2/1000) * 1000
		if oc.PriorCounter > 0 && counter >= oc.PriorCounter {
			counter = math.Round((oc.PriorCounter+oc.Offer.Amount)/2/1000) * 1000
		}
		return OfferAssessment{
			Recommendation: RecommendCounter,
			CounterAmount:  counter,
			Reasons:        []string{fmt.Sprintf("offer at %.0f%% of asking leaves room to negotiate", ratio*100)},
		}, nil
	}
}

// SimClassifier maps free text onto a stage's decision vocabulary by keyword,
// first match in vocabulary order wins.
type SimClassifier struct{}

var decisionKeywords = map[domain.Decision][]string{
	domain.DecisionApprove:  {"approve", "accept", "yes", "go ahead", "agreed", "confirm", "deal", "sign"},
	domain.DecisionReject:   {"reject", "no deal", "decline", "refuse", "too low", "pass"},
	domain.DecisionModify:   {"modify", "change", "adjust", "amend", "revise", "edit"},
	domain.DecisionDiscuss:  {"discuss", "question", "why", "what if", "explain", "clarify", "?"},
	domain.DecisionProceed:  {"proceed", "continue", "go on", "looks good", "ok", "fine"},
	domain.DecisionUpdate:   {"update", "correct", "fix the", "wrong"},
	domain.DecisionWait:     {"wait", "hold", "not yet", "later"},
	domain.DecisionComplete: {"complete", "done", "finalize", "close", "finished"},
	domain.DecisionPending:  {"pending", "still waiting", "missing", "outstanding"},
	domain.DecisionOffer:    {"offer", "bid", "i will pay", "propose"},
	domain.DecisionQuestion: {"how", "when", "where", "what", "is there", "does it"},
	domain.DecisionVisit:    {"visit", "viewing", "see the", "tour", "come by"},
	domain.DecisionWithdraw: {"withdraw", "not interested", "found another", "cancel"},
}

func (SimClassifier) Classify(_ context.Context, text string, allowed []domain.Decision) (domain.Decision, error) {
	if len(allowed) == 0 {
		return "", fmt.Errorf("classifier needs a non-empty decision vocabulary")
	}
	lower := strings.ToLower(text)
	for _, d := range allowed {
		for _, kw := range decisionKeywords[d] {
			if strings.Contains(lower, kw) {
				return d, nil
			}
		}
	}
	return allowed[0], nil
}

// SimComposer produces templated listing copy and replies.
type SimComposer struct{}

func (SimComposer) ListingCopy(_ context.Context, p domain.PropertySnapshot) (string, string, error) {
	headline := fmt.Sprintf("%s — %dBR in %s", p.Title, p.Bedrooms, orUnknown(p.City))
	body := fmt.Sprintf("%s. %d bedrooms, %d bathrooms, %.0f sqm at %s. Asking %.0f. Contact us to arrange a viewing.",
		p.Title, p.Bedrooms, p.Bathrooms, p.AreaSqm, p.Address, p.Price)
	return headline, body, nil
}

func (SimComposer) Reply(_ context.Context, topic, humanText string) (string, error) {
	return fmt.Sprintf("Regarding %s: noted your message %q. Here is the current position and what happens next.", topic, humanText), nil
}

func orUnknown(v string) string {
	if v == "" {
		return "an undisclosed location"
	}
	return v
}

// SimMessenger acknowledges every send with a fresh receipt.
type SimMessenger struct {
	Now func() time.Time
}

func (m SimMessenger) Send(_ context.Context, channel, recipient, body string) (Receipt, error) {
	if channel == "" {
		return Receipt{}, fmt.Errorf("messenger channel required")
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	_ = recipient
	_ = body
	return Receipt{MessageID: uuid.NewString(), SentAt: now().UTC()}, nil
}

type SimScheduler struct{}

func (SimScheduler) Book(_ context.Context, title string, when time.Time) (string, error) {
	if title == "" {
		return "", fmt.Errorf("event title required")
	}
	if when.IsZero() {
		return "", fmt.Errorf("event time required")
	}
	return uuid.NewString(), nil
}

type SimDocumentGenerator struct{}

func (SimDocumentGenerator) Generate(_ context.Context, kind, propertyID string) (Document, error) {
	switch kind {
	case "contract", "disclosure", "checklist":
	default:
		return Document{}, fmt.Errorf("unknown document kind %q", kind)
	}
	id := uuid.NewString()
	return Document{ID: id, URL: fmt.Sprintf("https://docs.homeline.local/%s/%s/%s.pdf", propertyID, kind, id)}, nil
}
