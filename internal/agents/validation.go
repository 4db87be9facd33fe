package agents

import (
	"context"
	"fmt"
	"strings"

	"homeline/internal/domain"
)

// ValidationAgent scores listing quality before anything is published.
// Listings at or above the configured threshold advance on their own;
// anything weaker waits for the broker to proceed, update, or discuss.
type ValidationAgent struct {
	Env Env
}

func (ValidationAgent) Node() Node { return NodeInputValidation }

func (a ValidationAgent) Execute(ctx context.Context, state domain.WorkflowState) (Result, error) {
	if state.HumanResponse != "" {
		return a.handleHuman(ctx, state)
	}
	return a.analyze(ctx, state, state.Property)
}

func (a ValidationAgent) analyze(ctx context.Context, state domain.WorkflowState, prop domain.PropertySnapshot) (Result, error) {
	assessment, err := a.Env.Caps.Analyzer.Analyze(ctx, prop)
	if err != nil {
		return Result{}, fmt.Errorf("analyze property %s: %w", prop.ID, err)
	}
	passed := assessment.Score >= a.Env.Cfg.Pipeline.QualityThreshold
	out := domain.AgentOutput{
		Agent:   string(NodeInputValidation),
		TS:      a.Env.ts(),
		Success: true,
		Validation: &domain.ValidationResult{
			Score:  assessment.Score,
			Issues: assessment.Issues,
			Passed: passed,
		},
	}
	if passed {
		u := advance(domain.StateUpdate{
			Property:        &prop,
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			ClearHumanInput: true,
		}, domain.StageMarketing)
		return Redirect(u, NodeMarketing), nil
	}
	out.NextAction = fmt.Sprintf("listing quality %d below threshold %d; reply proceed, update <details>, or ask a question", assessment.Score, a.Env.Cfg.Pipeline.QualityThreshold)
	u := suspend(domain.StateUpdate{
		Property:        &prop,
		AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
		ClearHumanInput: true,
	})
	return Update(u), nil
}

func (a ValidationAgent) handleHuman(ctx context.Context, state domain.WorkflowState) (Result, error) {
	decision, err := a.Env.classify(ctx, state.HumanResponse, []domain.Decision{
		domain.DecisionDiscuss, domain.DecisionUpdate, domain.DecisionProceed,
	})
	if err != nil {
		return Result{}, err
	}
	switch decision {
	case domain.DecisionProceed:
		out := domain.AgentOutput{
			Agent:      string(NodeInputValidation),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "broker approved listing despite quality issues",
		}
		if prev, ok := state.AgentOutputs[out.Agent]; ok {
			out.Validation = prev.Validation
		}
		u := advance(domain.StateUpdate{
			AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
			ClearHumanInput: true,
		}, domain.StageMarketing)
		return Redirect(u, NodeMarketing), nil
	case domain.DecisionUpdate:
		// Fold the broker's correction into the description and re-score.
		prop := state.Property
		prop.Description = strings.TrimSpace(prop.Description + "\n" + state.HumanResponse)
		return a.analyze(ctx, state, prop)
	default:
		out := domain.AgentOutput{
			Agent:      string(NodeInputValidation),
			TS:         a.Env.ts(),
			Success:    true,
			NextAction: "awaiting broker decision on listing quality",
		}
		return a.Env.discussReply(ctx, "listing validation", state, out)
	}
}
