package agents

import (
	"context"
	"fmt"
	"time"

	"homeline/internal/domain"
)

// ClosureAgent runs the final checklist, books the closing appointment, and
// waits for the broker to confirm completion. Confirmation is the only way a
// workflow reaches the completed stage.
type ClosureAgent struct {
	Env Env
}

func (ClosureAgent) Node() Node { return NodeClosure }

func (a ClosureAgent) Execute(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.HumanResponse != "" {
		return a.handleBroker(ctx, state)
	}
	return a.prepare(ctx, state)
}

func (a ClosureAgent) prepare(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.LegalDocuments == nil || state.LegalDocuments.Status != "ready" {
		return Result{}, fmt.Errorf("closure stage for %s requires approved legal documents", state.PropertyID)
	}
	when := a.Env.now().Add(7 * 24 * time.Hour)
	eventID, err := a.Env.Caps.Scheduler.Book(ctx, fmt.Sprintf("Closing: %s", state.Property.Title), when)
	if err != nil {
		return Result{}, fmt.Errorf("book closing for %s: %w", state.PropertyID, err)
	}
	out := domain.AgentOutput{
		Agent:   string(NodeClosure),
		TS:      a.Env.ts(),
		Success: true,
		Closure: &domain.ClosureResult{
			ChecklistComplete: true,
			ClosingEventID:    eventID,
		},
		NextAction: "closing scheduled; broker confirmation required (complete, pending, or discuss)",
	}
	u := suspend(domain.StateUpdate{
		AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
		ClearHumanInput: true,
	})
	return Update(u), nil
}

func (a ClosureAgent) handleBroker(ctx context.Context, state domain.WorkflowState) (Result, error) {
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionDiscuss, domain.DecisionPending, domain.DecisionComplete,
	})
	if err != nil {
		return Result{}, err
	}
	switch decision {
	case domain.DecisionComplete:
		now := a.Env.ts()
		out := domain.AgentOutput{
			Agent:   string(NodeClosure),
			TS:      now,
			Success: true,
			Closure: &domain.ClosureResult{ChecklistComplete: true, ClosingEventID: closingEventID(state)},
		}
		u := domain.StateUpdate{
			Stage:                     stagePtr(domain.StageCompleted),
			HumanInterventionRequired: boolPtr(false),
			AgentOutputs:              map[string]domain.AgentOutput{out.Agent: out},
			RetryCount:                intPtr(0),
			CompletedAt:               strPtr(now),
			ClearHumanInput:           true,
		}
		return Update(u), nil
	case domain.DecisionPending:
		out := domain.AgentOutput{
			Agent:      string(NodeClosure),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "closing items still outstanding; confirm with complete when done",
		}
		u := suspend(domain.StateUpdate{
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			ClearHumanInput: true,
		})
		return Update(u), nil
	default:
		out := domain.AgentOutput{
			Agent:      string(NodeClosure),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "awaiting broker confirmation of closing",
		}
		return a.Env.discussReply(ctx, "closing", state, out)
	}
}

func closingEventID(state domain.WorkflowState) string {
	if out, ok := state.AgentOutputs[string(NodeClosure)]; ok && out.Closure != nil {
		return out.Closure.ClosingEventID
	}
	return ""
}
