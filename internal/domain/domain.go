package domain

// Stage is one phase of the property sale pipeline.
type Stage string

const (
	StageInputValidation Stage = "input_validation"
	StageMarketing       Stage = "marketing"
	StageLeadManagement  Stage = "lead_management"
	StageNegotiation     Stage = "negotiation"
	StageLegal           Stage = "legal"
	StageClosure         Stage = "closure"
	StageCompleted       Stage = "completed"
)

var stageOrder = map[Stage]int{
	StageInputValidation: 0,
	StageMarketing:       1,
	StageLeadManagement:  2,
	StageNegotiation:     3,
	StageLegal:           4,
	StageClosure:         5,
	StageCompleted:       6,
}

// Valid reports whether s names a known pipeline stage.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Before reports whether s precedes other in pipeline order.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// HumanRole identifies who answered an interrupt.
type HumanRole string

const (
	RoleBroker HumanRole = "broker"
	RoleLead   HumanRole = "lead"
)

// Decision is a classified human reply. Each stage accepts a small fixed
// subset; the classifier maps free text onto it.
type Decision string

const (
	DecisionApprove  Decision = "approve"
	DecisionReject   Decision = "reject"
	DecisionModify   Decision = "modify"
	DecisionDiscuss  Decision = "discuss"
	DecisionProceed  Decision = "proceed"
	DecisionUpdate   Decision = "update"
	DecisionWait     Decision = "wait"
	DecisionComplete Decision = "complete"
	DecisionPending  Decision = "pending"
	DecisionOffer    Decision = "offer"
	DecisionQuestion Decision = "question"
	DecisionVisit    Decision = "visit"
	DecisionWithdraw Decision = "withdraw"
)

// PropertySnapshot is the listing data agents work against. It is copied into
// the workflow state at start; only the validation agent touches it afterwards.
type PropertySnapshot struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address"`
	City        string   `json:"city,omitempty"`
	Price       float64  `json:"price"`
	Bedrooms    int      `json:"bedrooms,omitempty"`
	Bathrooms   int      `json:"bathrooms,omitempty"`
	AreaSqm     float64  `json:"area_sqm,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Message is one line of a human/assistant transcript.
type Message struct {
	Role    string `json:"role" enum:"human,assistant"`
	Content string `json:"content"`
	TS      string `json:"ts" format:"date-time"`
}

type Lead struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	Source             string `json:"source,omitempty"`
	Message            string `json:"message,omitempty"`
	Status             string `json:"status" enum:"new,contacted,qualified,ready_for_offer,lost"`
	QualificationScore int    `json:"qualification_score"`
	CreatedAt          string `json:"created_at" format:"date-time"`
}

// LeadConversation is one lead's isolated transcript. Switching the active
// lead never touches another lead's conversation.
type LeadConversation struct {
	LeadID   string    `json:"lead_id"`
	Status   string    `json:"status"`
	Score    int       `json:"score"`
	Messages []Message `json:"messages"`
}

type Offer struct {
	ID            string  `json:"id"`
	LeadID        string  `json:"lead_id,omitempty"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status" enum:"pending,accepted,rejected,countered"`
	CounterAmount float64 `json:"counter_amount,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	DecidedAt     *string `json:"decided_at,omitempty" format:"date-time"`
}

type LegalDocuments struct {
	ContractURL   string `json:"contract_url,omitempty"`
	DisclosureURL string `json:"disclosure_url,omitempty"`
	ChecklistURL  string `json:"checklist_url,omitempty"`
	Status        string `json:"status" enum:"draft,review,ready"`
	GeneratedAt   string `json:"generated_at,omitempty" format:"date-time"`
}

type MarketingContent struct {
	Headline    string   `json:"headline"`
	ListingCopy string   `json:"listing_copy"`
	Channels    []string `json:"channels,omitempty"`
	PublishedAt string   `json:"published_at,omitempty" format:"date-time"`
}

// Per-stage result records. An AgentOutput carries exactly one, matching the
// agent that produced it, so each stage's output shape is statically known.

type ValidationResult struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
	Passed bool     `json:"passed"`
}

type MarketingResult struct {
	Channels   []string `json:"channels,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

type LeadsResult struct {
	NewLeads            int    `json:"new_leads"`
	Qualified           int    `json:"qualified"`
	ReadyLeadID         string `json:"ready_lead_id,omitempty"`
	ReadyForNegotiation bool   `json:"ready_for_negotiation"`
}

type NegotiationResult struct {
	OfferID        string  `json:"offer_id,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	OfferRatio     float64 `json:"offer_ratio,omitempty"`
	AutoExecuted   bool    `json:"auto_executed"`
}

type LegalResult struct {
	Documents    []string `json:"documents,omitempty"`
	ReviewStatus string   `json:"review_status,omitempty"`
}

type ClosureResult struct {
	ChecklistComplete bool   `json:"checklist_complete"`
	ClosingEventID    string `json:"closing_event_id,omitempty"`
}

// AgentOutput is the audit record an agent writes on every execution,
// success or failure. Keyed by agent name; a re-run overwrites the previous
// entry for the same agent.
type AgentOutput struct {
	Agent      string   `json:"agent"`
	TS         string   `json:"ts" format:"date-time"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
	NextAction string   `json:"next_action,omitempty"`

	Validation  *ValidationResult  `json:"validation,omitempty"`
	Marketing   *MarketingResult   `json:"marketing,omitempty"`
	Leads       *LeadsResult       `json:"leads,omitempty"`
	Negotiation *NegotiationResult `json:"negotiation,omitempty"`
	Legal       *LegalResult       `json:"legal,omitempty"`
	Closure     *ClosureResult     `json:"closure,omitempty"`
}

// WorkflowState is the single source of truth for one property's sale
// journey, persisted as a checkpoint snapshot after every node execution.
type WorkflowState struct {
	PropertyID string           `json:"property_id"`
	Property   PropertySnapshot `json:"property"`
	Stage      Stage            `json:"stage"`

	HumanInterventionRequired bool `json:"human_intervention_required"`

	// Transient resume fields; the next node execution consumes and clears them.
	HumanResponse string    `json:"human_response,omitempty"`
	HumanRole     HumanRole `json:"human_role,omitempty"`

	CurrentLeadID string `json:"current_lead_id,omitempty"`

	AgentOutputs      map[string]AgentOutput      `json:"agent_outputs"`
	Leads             []Lead                      `json:"leads,omitempty"`
	QualifiedLeads    []Lead                      `json:"qualified_leads,omitempty"`
	LeadConversations map[string]LeadConversation `json:"lead_conversations,omitempty"`
	CurrentOffer      *Offer                      `json:"current_offer,omitempty"`
	OfferHistory      []Offer                     `json:"offer_history,omitempty"`
	LegalDocuments    *LegalDocuments             `json:"legal_documents,omitempty"`
	MarketingContent  *MarketingContent           `json:"marketing_content,omitempty"`
	Messages          []Message                   `json:"messages,omitempty"`
	Errors            []string                    `json:"errors,omitempty"`
	RetryCount        int                         `json:"retry_count"`

	StartedAt   string  `json:"started_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

// StateUpdate is the partial update an agent returns. Nil/empty fields leave
// the state untouched; slices append (leads upsert by id), maps merge per key.
type StateUpdate struct {
	Stage                     *Stage
	Property                  *PropertySnapshot
	HumanInterventionRequired *bool
	CurrentLeadID             *string
	AgentOutputs              map[string]AgentOutput
	Leads                     []Lead
	QualifiedLeads            []Lead
	LeadConversations         map[string]LeadConversation
	CurrentOffer              *Offer
	OfferHistory              []Offer
	LegalDocuments            *LegalDocuments
	MarketingContent          *MarketingContent
	Messages                  []Message
	Errors                    []string
	RetryCount                *int
	CompletedAt               *string
	// HumanResponseSet/HumanRoleSet stage a human reply for the next agent.
	HumanResponseSet *string
	HumanRoleSet     *HumanRole
	// ClearHumanInput drops HumanResponse/HumanRole once consumed.
	ClearHumanInput bool
}

// Apply merges a partial update into the state.
func (s *WorkflowState) Apply(u StateUpdate) {
	if u.Stage != nil {
		s.Stage = *u.Stage
	}
	if u.Property != nil {
		s.Property = *u.Property
	}
	if u.HumanInterventionRequired != nil {
		s.HumanInterventionRequired = *u.HumanInterventionRequired
	}
	if u.CurrentLeadID != nil {
		s.CurrentLeadID = *u.CurrentLeadID
	}
	if len(u.AgentOutputs) > 0 {
		if s.AgentOutputs == nil {
			s.AgentOutputs = map[string]AgentOutput{}
		}
		for k, v := range u.AgentOutputs {
			s.AgentOutputs[k] = v
		}
	}
	s.Leads = upsertLeads(s.Leads, u.Leads)
	s.QualifiedLeads = upsertLeads(s.QualifiedLeads, u.QualifiedLeads)
	if len(u.LeadConversations) > 0 {
		if s.LeadConversations == nil {
			s.LeadConversations = map[string]LeadConversation{}
		}
		for k, v := range u.LeadConversations {
			s.LeadConversations[k] = v
		}
	}
	if u.CurrentOffer != nil {
		s.CurrentOffer = u.CurrentOffer
	}
	s.OfferHistory = append(s.OfferHistory, u.OfferHistory...)
	if u.LegalDocuments != nil {
		s.LegalDocuments = u.LegalDocuments
	}
	if u.MarketingContent != nil {
		s.MarketingContent = u.MarketingContent
	}
	s.Messages = append(s.Messages, u.Messages...)
	s.Errors = append(s.Errors, u.Errors...)
	if u.RetryCount != nil {
		s.RetryCount = *u.RetryCount
	}
	if u.CompletedAt != nil {
		s.CompletedAt = u.CompletedAt
	}
	if u.HumanResponseSet != nil {
		s.HumanResponse = *u.HumanResponseSet
	}
	if u.HumanRoleSet != nil {
		s.HumanRole = *u.HumanRoleSet
	}
	if u.ClearHumanInput {
		s.ClearHumanInput()
	}
}

func upsertLeads(existing, updates []Lead) []Lead {
	for _, u := range updates {
		replaced := false
		for i := range existing {
			if existing[i].ID == u.ID {
				existing[i] = u
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, u)
		}
	}
	return existing
}

// ClearHumanInput drops the transient resume fields once a stage agent has
// consumed them.
func (s *WorkflowState) ClearHumanInput() {
	s.HumanResponse = ""
	s.HumanRole = ""
}

// WorkflowStatus is the facade's read model for one workflow.
type WorkflowStatus struct {
	PropertyID                string                 `json:"property_id"`
	CurrentStage              Stage                  `json:"current_stage"`
	Completed                 bool                   `json:"completed"`
	HumanInterventionRequired bool                   `json:"human_intervention_required"`
	NextAction                string                 `json:"next_action,omitempty"`
	StartedAt                 string                 `json:"started_at" format:"date-time"`
	CompletedAt               *string                `json:"completed_at,omitempty" format:"date-time"`
	Error                     string                 `json:"error,omitempty"`
	AgentOutputs              map[string]AgentOutput `json:"agent_outputs"`
}

// HistoryEntry is one checkpoint as surfaced by the history query.
type HistoryEntry struct {
	Seq                       int                    `json:"seq"`
	TS                        string                 `json:"ts" format:"date-time"`
	Node                      string                 `json:"node"`
	Stage                     Stage                  `json:"stage"`
	HumanInterventionRequired bool                   `json:"human_intervention_required"`
	Interrupted               bool                   `json:"interrupted"`
	AgentOutputs              map[string]AgentOutput `json:"agent_outputs"`
}

// Property is the persisted listing record workflows are started from.
type Property struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address"`
	City        string   `json:"city,omitempty"`
	Price       float64  `json:"price"`
	Bedrooms    int      `json:"bedrooms,omitempty"`
	Bathrooms   int      `json:"bathrooms,omitempty"`
	AreaSqm     float64  `json:"area_sqm,omitempty"`
	Images      []string `json:"images,omitempty"`
	Status      string   `json:"status" enum:"draft,listed,in_workflow,sold"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

// Snapshot copies the listing attributes the agents need.
func (p Property) Snapshot() PropertySnapshot {
	return PropertySnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Address:     p.Address,
		City:        p.City,
		Price:       p.Price,
		Bedrooms:    p.Bedrooms,
		Bathrooms:   p.Bathrooms,
		AreaSqm:     p.AreaSqm,
		Images:      p.Images,
	}
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	PropertyID string `json:"property_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
