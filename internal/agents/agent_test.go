package agents

import (
	"context"
	"testing"
	"time"

	"homeline/internal/capability"
	"homeline/internal/config"
	"homeline/internal/domain"
)

func testEnv() Env {
	return Env{
		Caps: capability.Defaults(fixedClock),
		Cfg:  config.Default(),
		Now:  fixedClock,
	}
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"I would like to offer 460000", 460000},
		{"we can do 460,000 euros", 460000},
		{"450k is my limit", 450000},
		{"I'll pay 1,250,000.", 1250000},
		{"a lovely flat with 3 bedrooms", 0},
		{"no numbers here", 0},
	}
	for _, tc := range cases {
		if got := parseAmount(tc.text); got != tc.want {
			t.Errorf("parseAmount(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestHumanInputValidate(t *testing.T) {
	if err := (HumanInput{Role: domain.RoleBroker, Response: "approve"}).Validate(); err != nil {
		t.Fatalf("broker input should validate: %v", err)
	}
	if err := (HumanInput{Role: domain.RoleLead, Response: "offer 400000"}).Validate(); err != nil {
		t.Fatalf("lead input should validate: %v", err)
	}
	if err := (HumanInput{Role: domain.RoleBroker}).Validate(); err == nil {
		t.Fatalf("empty response must be rejected")
	}
	if err := (HumanInput{Role: "stranger", Response: "hi"}).Validate(); err == nil {
		t.Fatalf("unknown role must be rejected")
	}
	if err := (HumanInput{Response: "hi"}).Validate(); err == nil {
		t.Fatalf("missing role must be rejected")
	}
}

func TestHumanResumeRoutesBackToInterruptedNode(t *testing.T) {
	h := HumanNode{Env: testEnv()}
	state := domain.WorkflowState{PropertyID: "prop-1", Stage: domain.StageNegotiation}

	res, err := h.Resume(state, HumanInput{Role: domain.RoleBroker, Response: "approve"}, NodeNegotiation)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	next, redirect := res.Next()
	if !redirect || next != NodeNegotiation {
		t.Fatalf("expected redirect to negotiation, got %s redirect=%v", next, redirect)
	}
	state.Apply(res.StateUpdate())
	if state.HumanResponse != "approve" || state.HumanRole != domain.RoleBroker {
		t.Fatalf("transient resume fields not staged: %q %q", state.HumanResponse, state.HumanRole)
	}
	if len(state.Messages) != 1 || state.Messages[0].Role != "human" {
		t.Fatalf("broker line must land in the shared transcript: %+v", state.Messages)
	}
}

func TestHumanResumeLeadWritesConversation(t *testing.T) {
	h := HumanNode{Env: testEnv()}
	state := domain.WorkflowState{
		PropertyID:    "prop-1",
		Stage:         domain.StageNegotiation,
		CurrentLeadID: "lead-1",
		LeadConversations: map[string]domain.LeadConversation{
			"lead-1": {LeadID: "lead-1", Messages: []domain.Message{{Role: "assistant", Content: "hello"}}},
			"lead-2": {LeadID: "lead-2"},
		},
	}
	res, err := h.Resume(state, HumanInput{Role: domain.RoleLead, Response: "I offer 400000"}, NodeNegotiation)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	state.Apply(res.StateUpdate())
	if got := len(state.LeadConversations["lead-1"].Messages); got != 2 {
		t.Fatalf("expected the line appended to lead-1, got %d messages", got)
	}
	if got := len(state.LeadConversations["lead-2"].Messages); got != 0 {
		t.Fatalf("other conversations must stay untouched, got %d messages", got)
	}
	if len(state.Messages) != 0 {
		t.Fatalf("lead line must not land in the shared transcript")
	}
}

func TestHumanResumeNeedsTarget(t *testing.T) {
	h := HumanNode{Env: testEnv()}
	state := domain.WorkflowState{PropertyID: "prop-1"}
	if _, err := h.Resume(state, HumanInput{Role: domain.RoleBroker, Response: "approve"}, ""); err == nil {
		t.Fatalf("expected error without an interrupted node")
	}
	if _, err := h.Resume(state, HumanInput{Role: domain.RoleBroker, Response: "approve"}, NodeHuman); err == nil {
		t.Fatalf("expected error when the target is the human node itself")
	}
}

func TestValidationAgentThreshold(t *testing.T) {
	a := ValidationAgent{Env: testEnv()}
	strong := domain.WorkflowState{
		PropertyID: "prop-1",
		Stage:      domain.StageInputValidation,
		Property: domain.PropertySnapshot{
			ID:          "prop-1",
			Title:       "Sunny 3BR apartment near the river",
			Description: "Bright three bedroom apartment with river views, a renovated kitchen and a large balcony.",
			Address:     "12 Riverside Ave",
			City:        "Lisbon",
			Price:       500000,
			Bedrooms:    3,
			Bathrooms:   2,
			AreaSqm:     120,
			Images:      []string{"front.jpg"},
		},
	}
	res, err := a.Execute(context.Background(), strong)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if next, redirect := res.Next(); !redirect || next != NodeMarketing {
		t.Fatalf("strong listing must advance to marketing, got %s", next)
	}

	weak := strong
	weak.Property = domain.PropertySnapshot{ID: "prop-1", Title: "Flat", Address: "1 Short St", Price: 200000}
	res, err = a.Execute(context.Background(), weak)
	if err != nil {
		t.Fatalf("execute weak: %v", err)
	}
	if _, redirect := res.Next(); redirect {
		t.Fatalf("weak listing must not advance")
	}
	weak.Apply(res.StateUpdate())
	if !weak.HumanInterventionRequired {
		t.Fatalf("weak listing must wait for the broker")
	}
	out := weak.AgentOutputs[string(NodeInputValidation)]
	if out.Validation == nil || out.Validation.Passed {
		t.Fatalf("expected failing validation result: %+v", out.Validation)
	}
}

func TestNegotiationNeverAutoAccepts(t *testing.T) {
	a := NegotiationAgent{Env: testEnv()}
	state := domain.WorkflowState{
		PropertyID:    "prop-1",
		Stage:         domain.StageNegotiation,
		Property:      domain.PropertySnapshot{ID: "prop-1", Title: "Sunny 3BR apartment", Address: "12 Riverside Ave", City: "Lisbon", Price: 500000},
		Leads:         []domain.Lead{{ID: "lead-1", Name: "Marta", Email: "marta@example.com"}},
		CurrentLeadID: "lead-1",
		CurrentOffer:  &domain.Offer{ID: "offer-1", LeadID: "lead-1", Amount: 460000, Status: "pending"},
	}
	res, err := a.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, redirect := res.Next(); redirect {
		t.Fatalf("accept recommendation must end the pass, not advance")
	}
	state.Apply(res.StateUpdate())
	if !state.HumanInterventionRequired {
		t.Fatalf("accept recommendation must suspend for the broker")
	}
	if state.CurrentOffer.Status != "pending" {
		t.Fatalf("the offer must stay pending, got %s", state.CurrentOffer.Status)
	}
	out := state.AgentOutputs[string(NodeNegotiation)]
	if out.Negotiation == nil || out.Negotiation.AutoExecuted {
		t.Fatalf("acceptance must never be auto-executed: %+v", out.Negotiation)
	}
}

func TestNegotiationAutoRejectsDeepLowball(t *testing.T) {
	a := NegotiationAgent{Env: testEnv()}
	state := domain.WorkflowState{
		PropertyID:    "prop-1",
		Stage:         domain.StageNegotiation,
		Property:      domain.PropertySnapshot{ID: "prop-1", Title: "Sunny 3BR apartment", Address: "12 Riverside Ave", City: "Lisbon", Price: 500000},
		Leads:         []domain.Lead{{ID: "lead-1", Name: "Marta", Email: "marta@example.com"}},
		CurrentLeadID: "lead-1",
		CurrentOffer:  &domain.Offer{ID: "offer-1", LeadID: "lead-1", Amount: 300000, Status: "pending"},
	}
	res, err := a.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	state.Apply(res.StateUpdate())
	if state.CurrentOffer.Status != "rejected" {
		t.Fatalf("expected autonomous rejection, got %s", state.CurrentOffer.Status)
	}
	out := state.AgentOutputs[string(NodeNegotiation)]
	if out.Negotiation == nil || !out.Negotiation.AutoExecuted {
		t.Fatalf("deep lowball must be rejected autonomously: %+v", out.Negotiation)
	}
	if state.HumanInterventionRequired {
		t.Fatalf("an autonomous rejection must not interrupt; the thread waits for the buyer")
	}
}

func TestLeadWithdrawalFallsBackToLeadManagement(t *testing.T) {
	a := NegotiationAgent{Env: testEnv()}
	state := domain.WorkflowState{
		PropertyID:    "prop-1",
		Stage:         domain.StageNegotiation,
		Property:      domain.PropertySnapshot{ID: "prop-1", Title: "Sunny 3BR apartment", Address: "12 Riverside Ave", Price: 500000},
		Leads:         []domain.Lead{{ID: "lead-1", Name: "Marta", Status: "ready_for_offer"}},
		CurrentLeadID: "lead-1",
		CurrentOffer:  &domain.Offer{ID: "offer-1", LeadID: "lead-1", Amount: 460000, Status: "countered"},
		HumanResponse: "I am not interested anymore, I found another place",
		HumanRole:     domain.RoleLead,
	}
	res, err := a.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	state.Apply(res.StateUpdate())
	if state.Stage != domain.StageLeadManagement {
		t.Fatalf("withdrawal must fall back to lead_management, got %s", state.Stage)
	}
	if state.Leads[0].Status != "lost" {
		t.Fatalf("withdrawn lead must be lost, got %s", state.Leads[0].Status)
	}
	if state.CurrentLeadID != "" {
		t.Fatalf("current lead must be cleared")
	}
	if state.HumanInterventionRequired {
		t.Fatalf("a withdrawal parks the thread; nobody owes a decision")
	}
}

func TestHumanResumeMatchesLeadByContact(t *testing.T) {
	h := HumanNode{Env: testEnv()}
	state := domain.WorkflowState{
		PropertyID: "prop-1",
		Stage:      domain.StageLeadManagement,
		Leads: []domain.Lead{
			{ID: "lead-1", Name: "Marta", Email: "marta@example.com"},
			{ID: "lead-2", Name: "Ana", Phone: "+351900000001"},
		},
	}

	res, err := h.Resume(state, HumanInput{Role: domain.RoleLead, Response: "I offer 400000", LeadEmail: "marta@example.com"}, NodeLeadManagement)
	if err != nil {
		t.Fatalf("resume by email: %v", err)
	}
	byEmail := state
	byEmail.Apply(res.StateUpdate())
	if byEmail.CurrentLeadID != "lead-1" {
		t.Fatalf("email must route to lead-1, got %q", byEmail.CurrentLeadID)
	}
	if got := len(byEmail.LeadConversations["lead-1"].Messages); got != 1 {
		t.Fatalf("line must land in lead-1's conversation, got %d messages", got)
	}

	res, err = h.Resume(state, HumanInput{Role: domain.RoleLead, Response: "can I visit?", LeadPhone: "+351900000001"}, NodeLeadManagement)
	if err != nil {
		t.Fatalf("resume by phone: %v", err)
	}
	byPhone := state
	byPhone.Apply(res.StateUpdate())
	if byPhone.CurrentLeadID != "lead-2" {
		t.Fatalf("phone must route to lead-2, got %q", byPhone.CurrentLeadID)
	}
}
