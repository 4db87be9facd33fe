// Package capability defines the external services the stage agents consume.
// Production deployments plug real providers in; the simulated defaults keep
// the pipeline fully runnable offline and make tests deterministic.
package capability

import (
	"context"
	"time"

	"homeline/internal/domain"
)

// Assessment is a listing quality verdict.
type Assessment struct {
	Score  int
	Issues []string
}

type PropertyAnalyzer interface {
	Analyze(ctx context.Context, p domain.PropertySnapshot) (Assessment, error)
}

// MarketStats describes comparable pricing for a location.
type MarketStats struct {
	AveragePrice float64
	Tolerance    float64
}

type MarketData interface {
	Comparables(ctx context.Context, city string) (MarketStats, error)
}

type LeadSource interface {
	// Fetch returns inbound buyer inquiries for a listed property.
	Fetch(ctx context.Context, propertyID string) ([]domain.Lead, error)
}

type LeadScorer interface {
	Score(ctx context.Context, lead domain.Lead, conv domain.LeadConversation) (int, error)
}

// Offer recommendations. Accept recommendations are advisory only; the engine
// never executes an acceptance without a broker.
const (
	RecommendAccept  = "accept"
	RecommendCounter = "counter"
	RecommendReject  = "reject"
)

type OfferContext struct {
	Offer        domain.Offer
	AskingPrice  float64
	Market       MarketStats
	PriorCounter float64
}

type OfferAssessment struct {
	Recommendation string
	CounterAmount  float64
	Reasons        []string
}

type OfferAnalyzer interface {
	Assess(ctx context.Context, oc OfferContext) (OfferAssessment, error)
}

type Classifier interface {
	// Classify maps free-text onto one of the allowed decisions; the first
	// element is the fallback when nothing matches.
	Classify(ctx context.Context, text string, allowed []domain.Decision) (domain.Decision, error)
}

type Composer interface {
	ListingCopy(ctx context.Context, p domain.PropertySnapshot) (headline, body string, err error)
	Reply(ctx context.Context, topic, humanText string) (string, error)
}

// Receipt is proof of a sent message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

type Messenger interface {
	Send(ctx context.Context, channel, recipient, body string) (Receipt, error)
}

type Scheduler interface {
	// Book creates a calendar event and returns its id.
	Book(ctx context.Context, title string, when time.Time) (string, error)
}

type Document struct {
	ID  string
	URL string
}

type DocumentGenerator interface {
	Generate(ctx context.Context, kind, propertyID string) (Document, error)
}

// Set bundles everything an agent pipeline needs.
type Set struct {
	Analyzer   PropertyAnalyzer
	Market     MarketData
	LeadSource LeadSource
	LeadScorer LeadScorer
	Offers     OfferAnalyzer
	Classifier Classifier
	Composer   Composer
	Messenger  Messenger
	Scheduler  Scheduler
	Documents  DocumentGenerator
}

// Defaults returns the simulated capability set.
func Defaults(now func() time.Time) Set {
	if now == nil {
		now = time.Now
	}
	return Set{
		Analyzer:   SimPropertyAnalyzer{},
		Market:     SimMarketData{},
		LeadSource: &SimLeadSource{Now: now},
		LeadScorer: SimLeadScorer{},
		Offers:     SimOfferAnalyzer{},
		Classifier: SimClassifier{},
		Composer:   SimComposer{},
		Messenger:  SimMessenger{Now: now},
		Scheduler:  SimScheduler{},
		Documents:  SimDocumentGenerator{},
	}
}
