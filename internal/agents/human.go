package agents

import (
	"fmt"

	"homeline/internal/domain"
)

// HumanInput is a resume payload: who answered, what they said, and which
// lead the answer concerns when the speaker is a buyer. A buyer who does
// not know their lead id can identify the conversation by email or phone.
type HumanInput struct {
	Role      domain.HumanRole
	Response  string
	LeadID    string
	LeadEmail string
	LeadPhone string
}

func (in HumanInput) Validate() error {
	if in.Response == "" {
		return fmt.Errorf("human response must not be empty")
	}
	switch in.Role {
	case domain.RoleBroker, domain.RoleLead:
	case "":
		return fmt.Errorf("human role must be broker or lead")
	default:
		return fmt.Errorf("unknown human role %q", in.Role)
	}
	return nil
}

// HumanNode feeds a human reply back into the graph. It records the human's
// line in the right transcript, stores the transient response fields for the
// interrupted stage agent to consume, and redirects to that agent.
type HumanNode struct {
	Env Env
}

func (HumanNode) Node() Node { return NodeHuman }

// Resume builds the result routing back to target, the node recorded as
// interrupted in checkpoint metadata.
func (h HumanNode) Resume(state domain.WorkflowState, in HumanInput, target Node) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if target == "" || target == NodeHuman {
		return Result{}, fmt.Errorf("resume has no interrupted node to return to")
	}
	now := h.Env.ts()
	msg := domain.Message{Role: "human", Content: in.Response, TS: now}
	u := domain.StateUpdate{
		HumanInterventionRequired: boolPtr(false),
	}
	switch in.Role {
	case domain.RoleLead:
		leadID := in.LeadID
		if leadID == "" {
			leadID = leadIDByContact(state, in.LeadEmail, in.LeadPhone)
		}
		if leadID == "" {
			leadID = state.CurrentLeadID
		}
		if leadID == "" {
			// No addressable conversation yet; let the stage agent resolve
			// the lead and keep the line in the shared transcript.
			u.Messages = []domain.Message{msg}
		} else {
			u.CurrentLeadID = strPtr(leadID)
			u.LeadConversations = appendConvMessage(state, leadID, msg)
		}
	default:
		u.Messages = []domain.Message{msg}
	}
	// The stage agent reads these from state; they never survive past it.
	u.HumanResponseSet = &in.Response
	u.HumanRoleSet = &in.Role
	return Redirect(u, target), nil
}

// leadIDByContact matches a known lead by email or phone.
func leadIDByContact(state domain.WorkflowState, email, phone string) string {
	for _, l := range state.Leads {
		if email != "" && l.Email == email {
			return l.ID
		}
		if phone != "" && l.Phone == phone {
			return l.ID
		}
	}
	return ""
}
