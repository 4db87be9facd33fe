package agents

import (
	"context"
	"fmt"

	"homeline/internal/capability"
	"homeline/internal/domain"
)

// NegotiationAgent assesses offers against the asking price and market
// comparables. Counter-offers execute autonomously and rejections below the
// configured ratio do too; an acceptance is never executed without the
// broker approving it first.
type NegotiationAgent struct {
	Env Env
}

func (NegotiationAgent) Node() Node { return NodeNegotiation }

func (a NegotiationAgent) Execute(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.HumanResponse != "" {
		if state.HumanRole == domain.RoleLead {
			return a.handleLead(ctx, state)
		}
		return a.handleBroker(ctx, state)
	}
	return a.analyze(ctx, state)
}

func (a NegotiationAgent) analyze(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.CurrentOffer == nil || state.CurrentOffer.Status != "pending" {
		return Result{}, fmt.Errorf("negotiation for %s has no pending offer", state.PropertyID)
	}
	offer := *state.CurrentOffer
	market, err := a.Env.Caps.Market.Comparables(ctx, state.Property.City)
	if err != nil {
		return Result{}, fmt.Errorf("market comparables for %s: %w", state.Property.City, err)
	}
	assessment, err := a.Env.Caps.Offers.Assess(ctx, capability.OfferContext{
		Offer:        offer,
		AskingPrice:  state.Property.Price,
		Market:       market,
		PriorCounter: lastCounterAmount(state.OfferHistory),
	})
	if err != nil {
		return Result{}, fmt.Errorf("assess offer %s: %w", offer.ID, err)
	}
	ratio := offer.Amount / state.Property.Price

	switch assessment.Recommendation {
	case capability.RecommendCounter:
		return a.counterOffer(ctx, state, offer, assessment.CounterAmount, assessment.Reasons, true)
	case capability.RecommendReject:
		if ratio < a.Env.Cfg.Pipeline.AutoRejectRatio {
			return a.rejectOffer(ctx, state, offer, assessment.Reasons, true)
		}
		// Borderline rejection: let the broker have the final word.
		return a.suspendForBroker(state, offer, capability.RecommendReject, ratio, assessment.Reasons), nil
	case capability.RecommendAccept:
		return a.suspendForBroker(state, offer, capability.RecommendAccept, ratio, assessment.Reasons), nil
	default:
		return Result{}, fmt.Errorf("offer analyzer returned unknown recommendation %q", assessment.Recommendation)
	}
}

// suspendForBroker records the recommendation and waits for approve, reject,
// modify, or discuss.
func (a NegotiationAgent) suspendForBroker(state domain.WorkflowState, offer domain.Offer, recommendation string, ratio float64, reasons []string) Result {
	out := domain.AgentOutput{
		Agent:   string(NodeNegotiation),
		TS:      a.Env.ts(),
		Success: true,
		Negotiation: &domain.NegotiationResult{
			OfferID:        offer.ID,
			Recommendation: recommendation,
			OfferRatio:     ratio,
			AutoExecuted:   false,
		},
		NextAction: fmt.Sprintf("recommend %s of offer %.0f (%.0f%% of asking): %s", recommendation, offer.Amount, ratio*100, joinReasons(reasons)),
	}
	u := suspend(domain.StateUpdate{
		AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
		ClearHumanInput: true,
	})
	return Update(u)
}

func (a NegotiationAgent) handleBroker(ctx context.Context, state domain.WorkflowState) (Result, error) {
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionModify, domain.DecisionDiscuss, domain.DecisionReject, domain.DecisionApprove,
	})
	if err != nil {
		return Result{}, err
	}
	if state.CurrentOffer == nil {
		return Result{}, fmt.Errorf("broker decision for %s but no offer on the table", state.PropertyID)
	}
	offer := *state.CurrentOffer
	switch decision {
	case domain.DecisionApprove:
		rec := pendingRecommendation(state)
		if rec == capability.RecommendReject {
			return a.rejectOffer(ctx, state, offer, []string{"broker confirmed rejection"}, false)
		}
		return a.acceptOffer(ctx, state, offer)
	case domain.DecisionReject:
		return a.rejectOffer(ctx, state, offer, []string{"broker declined the offer"}, false)
	case domain.DecisionModify:
		amount := parseAmount(state.HumanResponse)
		if amount <= 0 {
			out := domain.AgentOutput{
				Agent:      string(NodeNegotiation),
				TS:         a.Env.ts(),
				Success:    true,
				NextAction: "modify requested without an amount; awaiting counter figure",
			}
			return a.Env.discussReply(ctx, "counter-offer amount", state, out)
		}
		return a.counterOffer(ctx, state, offer, amount, []string{"broker set counter amount"}, false)
	default:
		out := domain.AgentOutput{
			Agent:      string(NodeNegotiation),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "awaiting broker decision on the offer",
		}
		return a.Env.discussReply(ctx, "offer negotiation", state, out)
	}
}

func (a NegotiationAgent) handleLead(ctx context.Context, state domain.WorkflowState) (Result, error) {
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionWithdraw, domain.DecisionOffer, domain.DecisionQuestion,
	})
	if err != nil {
		return Result{}, err
	}
	switch decision {
	case domain.DecisionOffer:
		amount := parseAmount(state.HumanResponse)
		if amount <= 0 {
			return a.leadConversationReply(ctx, state, "Could you confirm the amount of your new offer?")
		}
		offer := domain.Offer{
			ID:        newOfferID(),
			LeadID:    state.CurrentLeadID,
			Amount:    amount,
			Status:    "pending",
			CreatedAt: a.Env.ts(),
		}
		u := domain.StateUpdate{
			CurrentOffer:    &offer,
			ClearHumanInput: true,
		}
		// Loop back into autonomous analysis of the fresh offer.
		return Redirect(u, NodeNegotiation), nil
	case domain.DecisionWithdraw:
		lead, _ := leadByID(state, state.CurrentLeadID)
		lead.Status = "lost"
		out := domain.AgentOutput{
			Agent:      string(NodeNegotiation),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "buyer withdrew during negotiation; back to lead management",
		}
		u := park(domain.StateUpdate{
			Stage:           stagePtr(domain.StageLeadManagement),
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			Leads:           []domain.Lead{lead},
			CurrentLeadID:   strPtr(""),
			RetryCount:      intPtr(0),
			ClearHumanInput: true,
		})
		return Update(u), nil
	default:
		reply, err := a.Env.Caps.Composer.Reply(ctx, "offer negotiation", state.HumanResponse)
		if err != nil {
			return Result{}, fmt.Errorf("compose negotiation reply: %w", err)
		}
		return a.leadConversationReply(ctx, state, reply)
	}
}

func (a NegotiationAgent) acceptOffer(ctx context.Context, state domain.WorkflowState, offer domain.Offer) (Result, error) {
	now := a.Env.ts()
	offer.Status = "accepted"
	offer.DecidedAt = &now
	a.notifyLead(ctx, state, fmt.Sprintf("Good news: your offer of %.0f has been accepted.", offer.Amount))
	out := domain.AgentOutput{
		Agent:   string(NodeNegotiation),
		TS:      now,
		Success: true,
		Negotiation: &domain.NegotiationResult{
			OfferID:        offer.ID,
			Recommendation: capability.RecommendAccept,
			OfferRatio:     offer.Amount / state.Property.Price,
			AutoExecuted:   false,
		},
	}
	u := advance(domain.StateUpdate{
		AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
		CurrentOffer:    &offer,
		OfferHistory:    []domain.Offer{offer},
		ClearHumanInput: true,
	}, domain.StageLegal)
	return Redirect(u, NodeLegal), nil
}

func (a NegotiationAgent) counterOffer(ctx context.Context, state domain.WorkflowState, offer domain.Offer, amount float64, reasons []string, auto bool) (Result, error) {
	now := a.Env.ts()
	offer.Status = "countered"
	offer.CounterAmount = amount
	offer.Reason = joinReasons(reasons)
	offer.DecidedAt = &now
	msg := fmt.Sprintf("Thank you for your offer of %.0f. We can proceed at %.0f.", offer.Amount, amount)
	a.notifyLead(ctx, state, msg)
	out := domain.AgentOutput{
		Agent:   string(NodeNegotiation),
		TS:      now,
		Success: true,
		Negotiation: &domain.NegotiationResult{
			OfferID:        offer.ID,
			Recommendation: capability.RecommendCounter,
			OfferRatio:     offer.Amount / state.Property.Price,
			AutoExecuted:   auto,
		},
		NextAction: fmt.Sprintf("countered at %.0f; awaiting buyer response", amount),
	}
	// A counter executes without pausing: the thread parks until the buyer
	// answers, it does not wait on the broker.
	u := park(domain.StateUpdate{
		AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
		CurrentOffer:      &offer,
		OfferHistory:      []domain.Offer{offer},
		LeadConversations: appendConvMessage(state, offer.LeadID, domain.Message{Role: "assistant", Content: msg, TS: now}),
		ClearHumanInput:   true,
	})
	return Update(u), nil
}

func (a NegotiationAgent) rejectOffer(ctx context.Context, state domain.WorkflowState, offer domain.Offer, reasons []string, auto bool) (Result, error) {
	now := a.Env.ts()
	offer.Status = "rejected"
	offer.Reason = joinReasons(reasons)
	offer.DecidedAt = &now
	msg := fmt.Sprintf("We cannot proceed at %.0f. You are welcome to submit a revised offer.", offer.Amount)
	a.notifyLead(ctx, state, msg)
	out := domain.AgentOutput{
		Agent:   string(NodeNegotiation),
		TS:      now,
		Success: true,
		Negotiation: &domain.NegotiationResult{
			OfferID:        offer.ID,
			Recommendation: capability.RecommendReject,
			OfferRatio:     offer.Amount / state.Property.Price,
			AutoExecuted:   auto,
		},
		NextAction: "offer rejected; awaiting a revised offer from the buyer",
	}
	// Same for a rejection, whether autonomous or broker-confirmed: nobody
	// owes the workflow a decision until the buyer comes back.
	u := park(domain.StateUpdate{
		AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
		CurrentOffer:      &offer,
		OfferHistory:      []domain.Offer{offer},
		LeadConversations: appendConvMessage(state, offer.LeadID, domain.Message{Role: "assistant", Content: msg, TS: now}),
		ClearHumanInput:   true,
	})
	return Update(u), nil
}

func (a NegotiationAgent) leadConversationReply(_ context.Context, state domain.WorkflowState, reply string) (Result, error) {
	now := a.Env.ts()
	out := domain.AgentOutput{
		Agent:      string(NodeNegotiation),
		TS:         now,
		Success:    true,
		NextAction: "replied to buyer; awaiting next response",
	}
	u := domain.StateUpdate{
		AgentOutputs:      map[string]domain.AgentOutput{out.Agent: out},
		LeadConversations: appendConvMessage(state, state.CurrentLeadID, domain.Message{Role: "assistant", Content: reply, TS: now}),
		ClearHumanInput:   true,
	}
	// A pending offer means the broker still owes a decision; keep the
	// interrupt open. Otherwise just park for the buyer's next message.
	if state.CurrentOffer != nil && state.CurrentOffer.Status == "pending" {
		u = suspend(u)
	} else {
		u = park(u)
	}
	return Update(u), nil
}

// notifyLead sends a best-effort message to the active lead; delivery
// failures do not fail the negotiation step.
func (a NegotiationAgent) notifyLead(ctx context.Context, state domain.WorkflowState, body string) {
	lead, ok := leadByID(state, state.CurrentLeadID)
	if !ok {
		return
	}
	recipient := lead.Email
	if recipient == "" {
		recipient = lead.Phone
	}
	_, _ = a.Env.Caps.Messenger.Send(ctx, "email", recipient, body)
}

func pendingRecommendation(state domain.WorkflowState) string {
	if out, ok := state.AgentOutputs[string(NodeNegotiation)]; ok && out.Negotiation != nil {
		return out.Negotiation.Recommendation
	}
	return ""
}

func lastCounterAmount(history []domain.Offer) float64 {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status == "countered" {
			return history[i].CounterAmount
		}
	}
	return 0
}

func leadByID(state domain.WorkflowState, id string) (domain.Lead, bool) {
	for _, l := range state.Leads {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Lead{}, false
}

func appendConvMessage(state domain.WorkflowState, leadID string, msg domain.Message) map[string]domain.LeadConversation {
	if leadID == "" {
		return nil
	}
	conv := state.LeadConversations[leadID]
	conv.LeadID = leadID
	conv.Messages = append(conv.Messages, msg)
	return map[string]domain.LeadConversation{leadID: conv}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
