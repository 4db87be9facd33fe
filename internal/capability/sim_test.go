package capability

import (
	"context"
	"testing"

	"homeline/internal/domain"
)

func TestSimClassifierVocabularyOrder(t *testing.T) {
	c := SimClassifier{}
	ctx := context.Background()
	cases := []struct {
		text    string
		allowed []domain.Decision
		want    domain.Decision
	}{
		{"approve the offer", []domain.Decision{domain.DecisionModify, domain.DecisionDiscuss, domain.DecisionReject, domain.DecisionApprove}, domain.DecisionApprove},
		{"why do you recommend accepting this?", []domain.Decision{domain.DecisionModify, domain.DecisionDiscuss, domain.DecisionReject, domain.DecisionApprove}, domain.DecisionDiscuss},
		{"too low, counter at 480k", []domain.Decision{domain.DecisionModify, domain.DecisionDiscuss, domain.DecisionReject, domain.DecisionApprove}, domain.DecisionReject},
		{"I would like to offer 460000", []domain.Decision{domain.DecisionWithdraw, domain.DecisionVisit, domain.DecisionOffer, domain.DecisionQuestion}, domain.DecisionOffer},
		{"can I come by for a viewing?", []domain.Decision{domain.DecisionWithdraw, domain.DecisionVisit, domain.DecisionOffer, domain.DecisionQuestion}, domain.DecisionVisit},
		{"not interested, found another place", []domain.Decision{domain.DecisionWithdraw, domain.DecisionVisit, domain.DecisionOffer, domain.DecisionQuestion}, domain.DecisionWithdraw},
		{"proceed with the listing", []domain.Decision{domain.DecisionDiscuss, domain.DecisionUpdate, domain.DecisionProceed}, domain.DecisionProceed},
		{"complete", []domain.Decision{domain.DecisionDiscuss, domain.DecisionPending, domain.DecisionComplete}, domain.DecisionComplete},
		{"still waiting on the notary", []domain.Decision{domain.DecisionDiscuss, domain.DecisionPending, domain.DecisionComplete}, domain.DecisionPending},
		// Nothing matches: the first element is the fallback.
		{"zzz", []domain.Decision{domain.DecisionDiscuss, domain.DecisionProceed}, domain.DecisionDiscuss},
	}
	for _, tc := range cases {
		got, err := c.Classify(ctx, tc.text, tc.allowed)
		if err != nil {
			t.Fatalf("classify %q: %v", tc.text, err)
		}
		if got != tc.want {
			t.Errorf("classify(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
	if _, err := c.Classify(ctx, "anything", nil); err == nil {
		t.Fatalf("empty vocabulary must error")
	}
}

func TestSimOfferAnalyzerBoundaries(t *testing.T) {
	a := SimOfferAnalyzer{}
	ctx := context.Background()
	market := MarketStats{AveragePrice: 420000, Tolerance: 0.15}
	asking := 500000.0

	assess := func(amount float64) OfferAssessment {
		t.Helper()
		res, err := a.Assess(ctx, OfferContext{
			Offer:       domain.Offer{ID: "o", Amount: amount, Status: "pending"},
			AskingPrice: asking,
			Market:      market,
		})
		if err != nil {
			t.Fatalf("assess %v: %v", amount, err)
		}
		return res
	}

	if got := assess(450000); got.Recommendation != RecommendAccept {
		t.Fatalf("90%% of asking must recommend accept, got %s", got.Recommendation)
	}
	if got := assess(449999); got.Recommendation == RecommendAccept {
		t.Fatalf("just below 90%% must not recommend accept")
	}
	if got := assess(374999); got.Recommendation != RecommendReject {
		t.Fatalf("below 75%% must recommend reject, got %s", got.Recommendation)
	}
	got := assess(400000)
	if got.Recommendation != RecommendCounter {
		t.Fatalf("80%% of asking must recommend counter, got %s", got.Recommendation)
	}
	if got.CounterAmount <= 400000 || got.CounterAmount > asking {
		t.Fatalf("counter %v must land between offer and asking", got.CounterAmount)
	}

	if _, err := a.Assess(ctx, OfferContext{Offer: domain.Offer{Amount: 100}, AskingPrice: 0}); err == nil {
		t.Fatalf("zero asking price must error")
	}
}

func TestSimOfferAnalyzerCounterBelowPriorCounter(t *testing.T) {
	a := SimOfferAnalyzer{}
	res, err := a.Assess(context.Background(), OfferContext{
		Offer:        domain.Offer{ID: "o", Amount: 400000, Status: "pending"},
		AskingPrice:  500000,
		Market:       MarketStats{AveragePrice: 420000},
		PriorCounter: 430000,
	})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if res.Recommendation != RecommendCounter {
		t.Fatalf("expected counter, got %s", res.Recommendation)
	}
	if res.CounterAmount >= 430000 {
		t.Fatalf("fresh counter %v must move below the prior counter", res.CounterAmount)
	}
}

func TestSimLeadScorerKeywords(t *testing.T) {
	s := SimLeadScorer{}
	ctx := context.Background()
	hot, err := s.Score(ctx, domain.Lead{Message: "I am pre-approved for a mortgage and would like to visit this week."}, domain.LeadConversation{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	cold, err := s.Score(ctx, domain.Lead{Message: "Just curious about the neighbourhood."}, domain.LeadConversation{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if hot <= cold {
		t.Fatalf("intent keywords must outrank idle curiosity: hot=%d cold=%d", hot, cold)
	}
	if hot > 100 || cold < 0 {
		t.Fatalf("scores must stay in 0..100: hot=%d cold=%d", hot, cold)
	}
}

func TestSimPropertyAnalyzerDeductions(t *testing.T) {
	a := SimPropertyAnalyzer{}
	ctx := context.Background()
	full, err := a.Analyze(ctx, domain.PropertySnapshot{
		ID:          "p",
		Title:       "Sunny 3BR apartment near the river",
		Description: "Bright three bedroom apartment with river views, a renovated kitchen and a large balcony.",
		Address:     "12 Riverside Ave",
		Price:       500000,
		Bedrooms:    3,
		Bathrooms:   2,
		AreaSqm:     120,
		Images:      []string{"front.jpg"},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if full.Score != 100 || len(full.Issues) != 0 {
		t.Fatalf("complete listing must score 100, got %d %v", full.Score, full.Issues)
	}

	bare, err := a.Analyze(ctx, domain.PropertySnapshot{ID: "p"})
	if err != nil {
		t.Fatalf("analyze bare: %v", err)
	}
	if bare.Score != 0 {
		t.Fatalf("empty listing must bottom out at 0, got %d", bare.Score)
	}
	if len(bare.Issues) == 0 {
		t.Fatalf("expected issues for an empty listing")
	}
}
