package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"homeline/internal/domain"
)

// LeadsAgent collects and qualifies buyer inquiries. After intake it parks
// the workflow: leads answer questions, book visits, or place offers; the
// broker can nudge or hold. An offer moves the pipeline into negotiation.
type LeadsAgent struct {
	Env Env
}

func (LeadsAgent) Node() Node { return NodeLeadManagement }

func (a LeadsAgent) Execute(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.HumanResponse != "" {
		if state.HumanRole == domain.RoleLead {
			return a.handleLead(ctx, state)
		}
		return a.handleBroker(ctx, state)
	}
	return a.intake(ctx, state)
}

func (a LeadsAgent) intake(ctx context.Context, state domain.WorkflowState) (Result, error) {
	leads, err := a.Env.Caps.LeadSource.Fetch(ctx, state.PropertyID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch leads for %s: %w", state.PropertyID, err)
	}
	convs := map[string]domain.LeadConversation{}
	var qualified []domain.Lead
	for i := range leads {
		conv := domain.LeadConversation{LeadID: leads[i].ID, Status: leads[i].Status}
		if leads[i].Message != "" {
			conv.Messages = append(conv.Messages, domain.Message{Role: "human", Content: leads[i].Message, TS: leads[i].CreatedAt})
		}
		score, err := a.Env.Caps.LeadScorer.Score(ctx, leads[i], conv)
		if err != nil {
			return Result{}, fmt.Errorf("score lead %s: %w", leads[i].ID, err)
		}
		leads[i].QualificationScore = score
		conv.Score = score
		if score >= a.Env.Cfg.Pipeline.QualifyScore {
			leads[i].Status = "qualified"
			qualified = append(qualified, leads[i])
		}
		conv.Status = leads[i].Status
		convs[leads[i].ID] = conv
	}
	out := domain.AgentOutput{
		Agent:   string(NodeLeadManagement),
		TS:      a.Env.ts(),
		Success: true,
		Leads: &domain.LeadsResult{
			NewLeads:  len(leads),
			Qualified: len(qualified),
		},
		NextAction: "awaiting lead responses; broker may reply proceed, wait, or discuss",
	}
	// Intake ends the pass parked, not interrupted: nobody owes the
	// workflow a decision, it is waiting for the market.
	u := park(domain.StateUpdate{
		AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
		Leads:             leads,
		QualifiedLeads:    qualified,
		LeadConversations: convs,
		ClearHumanInput:   true,
	})
	return Update(u), nil
}

func (a LeadsAgent) handleLead(ctx context.Context, state domain.WorkflowState) (Result, error) {
	lead, ok := a.resolveLead(state)
	if !ok {
		return Result{}, fmt.Errorf("lead response for %s names no known lead", state.PropertyID)
	}
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionWithdraw, domain.DecisionVisit, domain.DecisionOffer, domain.DecisionQuestion,
	})
	if err != nil {
		return Result{}, err
	}
	switch decision {
	case domain.DecisionOffer:
		amount := parseAmount(state.HumanResponse)
		if amount <= 0 {
			return a.leadReply(ctx, state, lead, "offer", "Could you confirm the exact amount you are offering?")
		}
		now := a.Env.ts()
		offer := domain.Offer{
			ID:        uuid.NewString(),
			LeadID:    lead.ID,
			Amount:    amount,
			Status:    "pending",
			CreatedAt: now,
		}
		lead.Status = "ready_for_offer"
		out := domain.AgentOutput{
			Agent:   string(NodeLeadManagement),
			TS:      now,
			Success: true,
			Leads: &domain.LeadsResult{
				NewLeads:            len(state.Leads),
				Qualified:           len(state.QualifiedLeads),
				ReadyLeadID:         lead.ID,
				ReadyForNegotiation: true,
			},
		}
		u := advance(domain.StateUpdate{
			AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
			Leads:             []domain.Lead{lead},
			CurrentLeadID:     strPtr(lead.ID),
			CurrentOffer:      &offer,
			LeadConversations: a.convStatus(state, lead.ID, lead.Status),
			ClearHumanInput:   true,
		}, domain.StageNegotiation)
		return Redirect(u, NodeNegotiation), nil
	case domain.DecisionVisit:
		when := a.Env.now().Add(48 * time.Hour)
		eventID, err := a.Env.Caps.Scheduler.Book(ctx, fmt.Sprintf("Viewing %s with %s", state.Property.Title, lead.Name), when)
		if err != nil {
			return Result{}, fmt.Errorf("book viewing for lead %s: %w", lead.ID, err)
		}
		lead.Status = "contacted"
		msg := fmt.Sprintf("Viewing booked for %s (ref %s). See you there!", when.UTC().Format(time.RFC3339), eventID)
		return a.leadReplyWithLead(ctx, state, lead, "visit", msg)
	case domain.DecisionWithdraw:
		lead.Status = "lost"
		out := domain.AgentOutput{
			Agent:      string(NodeLeadManagement),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "lead withdrew; awaiting remaining leads",
		}
		u := park(domain.StateUpdate{
			AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
			Leads:             []domain.Lead{lead},
			CurrentLeadID:     strPtr(""),
			LeadConversations: a.convStatus(state, lead.ID, "lost"),
			ClearHumanInput:   true,
		})
		return Update(u), nil
	default:
		reply, err := a.Env.Caps.Composer.Reply(ctx, "property inquiry", state.HumanResponse)
		if err != nil {
			return Result{}, fmt.Errorf("compose lead reply: %w", err)
		}
		return a.leadReply(ctx, state, lead, "question", reply)
	}
}

func (a LeadsAgent) handleBroker(ctx context.Context, state domain.WorkflowState) (Result, error) {
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionDiscuss, domain.DecisionWait, domain.DecisionProceed,
	})
	if err != nil {
		return Result{}, err
	}
	switch decision {
	case domain.DecisionProceed:
		// Re-score what we have and report readiness; an actual offer is
		// still required to enter negotiation.
		var qualified []domain.Lead
		var ready string
		for _, l := range state.Leads {
			if l.Status == "lost" {
				continue
			}
			if l.QualificationScore >= a.Env.Cfg.Pipeline.QualifyScore {
				qualified = append(qualified, l)
				if ready == "" {
					ready = l.ID
				}
			}
		}
		out := domain.AgentOutput{
			Agent:   string(NodeLeadManagement),
			TS:      a.Env.ts(),
			Success: true,
			Leads: &domain.LeadsResult{
				NewLeads:    len(state.Leads),
				Qualified:   len(qualified),
				ReadyLeadID: ready,
			},
			NextAction: "still waiting for an offer from a qualified lead",
		}
		u := park(domain.StateUpdate{
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			QualifiedLeads:  qualified,
			ClearHumanInput: true,
		})
		return Update(u), nil
	case domain.DecisionWait:
		out := domain.AgentOutput{
			Agent:      string(NodeLeadManagement),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "holding per broker instruction",
		}
		u := park(domain.StateUpdate{
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			ClearHumanInput: true,
		})
		return Update(u), nil
	default:
		out := domain.AgentOutput{
			Agent:      string(NodeLeadManagement),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "awaiting broker direction on leads",
		}
		return a.Env.discussReply(ctx, "lead pipeline", state, out)
	}
}

// resolveLead picks the lead a lead-role response belongs to: the current
// lead if set, otherwise the best-scored live lead.
func (a LeadsAgent) resolveLead(state domain.WorkflowState) (domain.Lead, bool) {
	if state.CurrentLeadID != "" {
		for _, l := range state.Leads {
			if l.ID == state.CurrentLeadID {
				return l, true
			}
		}
	}
	var best domain.Lead
	found := false
	for _, l := range state.Leads {
		if l.Status == "lost" {
			continue
		}
		if !found || l.QualificationScore > best.QualificationScore {
			best = l
			found = true
		}
	}
	return best, found
}

func (a LeadsAgent) convStatus(state domain.WorkflowState, leadID, status string) map[string]domain.LeadConversation {
	conv := state.LeadConversations[leadID]
	conv.LeadID = leadID
	conv.Status = status
	return map[string]domain.LeadConversation{leadID: conv}
}

// leadReply appends the assistant's answer to the lead's conversation and
// keeps the workflow parked at lead management.
func (a LeadsAgent) leadReply(ctx context.Context, state domain.WorkflowState, lead domain.Lead, topic, reply string) (Result, error) {
	return a.leadReplyWithLead(ctx, state, lead, topic, reply)
}

func (a LeadsAgent) leadReplyWithLead(_ context.Context, state domain.WorkflowState, lead domain.Lead, topic, reply string) (Result, error) {
	conv := state.LeadConversations[lead.ID]
	conv.LeadID = lead.ID
	conv.Status = lead.Status
	conv.Messages = append(conv.Messages, domain.Message{Role: "assistant", Content: reply, TS: a.Env.ts()})
	out := domain.AgentOutput{
		Agent:      string(NodeLeadManagement),
		TS:         a.Env.ts(),
		Success:    true,
		NextAction: fmt.Sprintf("replied to lead %s (%s); awaiting next response", lead.Name, topic),
	}
	u := park(domain.StateUpdate{
		AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
		Leads:             []domain.Lead{lead},
		CurrentLeadID:     strPtr(lead.ID),
		LeadConversations: map[string]domain.LeadConversation{lead.ID: conv},
		ClearHumanInput:   true,
	})
	return Update(u), nil
}
