package agents

import (
	"context"
	"fmt"

	"homeline/internal/domain"
)

// LegalAgent prepares the sale paperwork once an offer is accepted and holds
// it for broker review. Documents regenerate on modify; the stage only moves
// on with an explicit approval.
type LegalAgent struct {
	Env Env
}

func (LegalAgent) Node() Node { return NodeLegal }

func (a LegalAgent) Execute(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.HumanResponse != "" {
		return a.handleBroker(ctx, state)
	}
	return a.prepare(ctx, state)
}

func (a LegalAgent) prepare(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.CurrentOffer == nil || state.CurrentOffer.Status != "accepted" {
		return Result{}, fmt.Errorf("legal stage for %s requires an accepted offer", state.PropertyID)
	}
	docs := domain.LegalDocuments{Status: "review", GeneratedAt: a.Env.ts()}
	var generated []string
	for _, kind := range []string{"contract", "disclosure", "checklist"} {
		doc, err := a.Env.Caps.Documents.Generate(ctx, kind, state.PropertyID)
		if err != nil {
			return Result{}, fmt.Errorf("generate %s for %s: %w", kind, state.PropertyID, err)
		}
		generated = append(generated, kind)
		switch kind {
		case "contract":
			docs.ContractURL = doc.URL
		case "disclosure":
			docs.DisclosureURL = doc.URL
		case "checklist":
			docs.ChecklistURL = doc.URL
		}
	}
	out := domain.AgentOutput{
		Agent:   string(NodeLegal),
		TS:      a.Env.ts(),
		Success: true,
		Legal: &domain.LegalResult{
			Documents:    generated,
			ReviewStatus: "review",
		},
		NextAction: "sale documents drafted; broker review required (approve, reject, modify, or discuss)",
	}
	u := suspend(domain.StateUpdate{
		AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
		LegalDocuments:  &docs,
		ClearHumanInput: true,
	})
	return Update(u), nil
}

func (a LegalAgent) handleBroker(ctx context.Context, state domain.WorkflowState) (Result, error) {
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionModify, domain.DecisionDiscuss, domain.DecisionReject, domain.DecisionApprove,
	})
	if err != nil {
		return Result{}, err
	}
	switch decision {
	case domain.DecisionApprove:
		docs := state.LegalDocuments
		if docs == nil {
			return Result{}, fmt.Errorf("legal approval for %s but no documents drafted", state.PropertyID)
		}
		ready := *docs
		ready.Status = "ready"
		out := domain.AgentOutput{
			Agent:   string(NodeLegal),
			TS:      a.Env.ts(),
			Success: true,
			Legal: &domain.LegalResult{
				Documents:    []string{"contract", "disclosure", "checklist"},
				ReviewStatus: "ready",
			},
		}
		u := advance(domain.StateUpdate{
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			LegalDocuments:  &ready,
			ClearHumanInput: true,
		}, domain.StageClosure)
		return Redirect(u, NodeClosure), nil
	case domain.DecisionReject, domain.DecisionModify:
		// Both mean the drafts are not good enough; regenerate and re-review.
		return a.prepare(ctx, state)
	default:
		out := domain.AgentOutput{
			Agent:      string(NodeLegal),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "awaiting broker review of sale documents",
		}
		return a.Env.discussReply(ctx, "legal review", state, out)
	}
}
