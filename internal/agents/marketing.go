package agents

import (
	"context"
	"fmt"

	"homeline/internal/domain"
)

// MarketingAgent composes listing copy and pushes it to every configured
// channel. It never suspends; publication failures on a subset of channels
// are recorded and the pipeline moves on.
type MarketingAgent struct {
	Env Env
}

func (MarketingAgent) Node() Node { return NodeMarketing }

func (a MarketingAgent) Execute(ctx context.Context, state domain.WorkflowState) (Result, error) {
	headline, body, err := a.Env.Caps.Composer.ListingCopy(ctx, state.Property)
	if err != nil {
		return Result{}, fmt.Errorf("compose listing copy for %s: %w", state.PropertyID, err)
	}
	content := domain.MarketingContent{
		Headline:    headline,
		ListingCopy: body,
		Channels:    a.Env.Cfg.Marketing.Channels,
		PublishedAt: a.Env.ts(),
	}
	var (
		published  []string
		messageIDs []string
		sendErrs   []string
	)
	for _, ch := range a.Env.Cfg.Marketing.Channels {
		receipt, err := a.Env.Caps.Messenger.Send(ctx, ch, "audience:"+ch, body)
		if err != nil {
			sendErrs = append(sendErrs, fmt.Sprintf("channel %s: %v", ch, err))
			continue
		}
		published = append(published, ch)
		messageIDs = append(messageIDs, receipt.MessageID)
	}
	if len(published) == 0 {
		return Result{}, fmt.Errorf("publish listing %s: no channel accepted it: %v", state.PropertyID, sendErrs)
	}
	content.Channels = published
	out := domain.AgentOutput{
		Agent:   string(NodeMarketing),
		TS:      a.Env.ts(),
		Success: true,
		Errors:  sendErrs,
		Marketing: &domain.MarketingResult{
			Channels:   published,
			MessageIDs: messageIDs,
		},
	}
	u := advance(domain.StateUpdate{
		AgentOutputs:     map[string]domain.AgentOutput{out.Agent: out},
		MarketingContent: &content,
		ClearHumanInput:  true,
	}, domain.StageLeadManagement)
	return Redirect(u, NodeLeadManagement), nil
}
