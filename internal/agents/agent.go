// Package agents implements the stage agents of the sale pipeline and the
// human interaction node. Agents are pure against the capability set: they
// read the workflow state, call capabilities, and return a partial update,
// optionally with the next node to run.
package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"homeline/internal/capability"
	"homeline/internal/config"
	"homeline/internal/domain"
)

// Node names a vertex of the workflow graph.
type Node string

const (
	NodeInputValidation Node = "input_validation"
	NodeMarketing       Node = "marketing"
	NodeLeadManagement  Node = "lead_management"
	NodeNegotiation     Node = "negotiation"
	NodeLegal           Node = "legal"
	NodeClosure         Node = "closure"
	NodeHuman           Node = "human_interaction"
)

var stageNodes = map[domain.Stage]Node{
	domain.StageInputValidation: NodeInputValidation,
	domain.StageMarketing:       NodeMarketing,
	domain.StageLeadManagement:  NodeLeadManagement,
	domain.StageNegotiation:     NodeNegotiation,
	domain.StageLegal:           NodeLegal,
	domain.StageClosure:         NodeClosure,
}

// NodeForStage returns the stage's node; false for completed.
func NodeForStage(s domain.Stage) (Node, bool) {
	n, ok := stageNodes[s]
	return n, ok
}

// Result is what an agent execution yields: a state update, and either an
// explicit next node (redirect) or the end of the pass. Construct with
// Update or Redirect only.
type Result struct {
	update   domain.StateUpdate
	next     Node
	redirect bool
}

// Update ends the current pass after merging u. The engine suspends if the
// merged state requires human intervention, otherwise the pass is over.
func Update(u domain.StateUpdate) Result {
	return Result{update: u}
}

// Redirect merges u and continues the pass at next.
func Redirect(u domain.StateUpdate, next Node) Result {
	return Result{update: u, next: next, redirect: true}
}

func (r Result) StateUpdate() domain.StateUpdate { return r.update }

// Next returns the redirect target, if any.
func (r Result) Next() (Node, bool) { return r.next, r.redirect }

// Agent executes one node of the graph.
type Agent interface {
	Node() Node
	Execute(ctx context.Context, state domain.WorkflowState) (Result, error)
}

// Env carries the shared dependencies every agent needs.
type Env struct {
	Caps capability.Set
	Cfg  *config.Config
	Now  func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) ts() string {
	return e.now().UTC().Format(time.RFC3339)
}

// All returns the stage agents keyed by node. The human node is not an Agent;
// the engine drives it directly on resume.
func All(env Env) map[Node]Agent {
	agents := []Agent{
		ValidationAgent{Env: env},
		MarketingAgent{Env: env},
		LeadsAgent{Env: env},
		NegotiationAgent{Env: env},
		LegalAgent{Env: env},
		ClosureAgent{Env: env},
	}
	byNode := make(map[Node]Agent, len(agents))
	for _, a := range agents {
		byNode[a.Node()] = a
	}
	return byNode
}

func (e Env) classify(ctx context.Context, text string, allowed []domain.Decision) (domain.Decision, error) {
	d, err := e.Caps.Classifier.Classify(ctx, text, allowed)
	if err != nil {
		return "", fmt.Errorf("classify human response: %w", err)
	}
	return d, nil
}

func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func stagePtr(s domain.Stage) *domain.Stage { return &s }

// suspend marks the update as requiring human intervention.
func suspend(u domain.StateUpdate) domain.StateUpdate {
	u.HumanInterventionRequired = boolPtr(true)
	return u
}

// park ends the pass without an interrupt: the stage keeps waiting for
// outside input (a buyer message, a new lead) but no human owes the
// workflow a decision.
func park(u domain.StateUpdate) domain.StateUpdate {
	u.HumanInterventionRequired = boolPtr(false)
	return u
}

// advance moves to the next stage and resets the retry counter.
func advance(u domain.StateUpdate, to domain.Stage) domain.StateUpdate {
	u.Stage = stagePtr(to)
	u.RetryCount = intPtr(0)
	u.HumanInterventionRequired = boolPtr(false)
	return u
}

func newOfferID() string { return uuid.NewString() }

var amountRe = regexp.MustCompile(`(?i)(\d[\d,.]*)\s*(k)?`)

// parseAmount extracts a monetary amount from free text, accepting thousand
// separators and a k suffix. Returns 0 when no amount is present.
func parseAmount(text string) float64 {
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		raw = strings.TrimSuffix(raw, ".")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v == 0 {
			continue
		}
		if m[2] != "" {
			v *= 1000
		}
		// Ignore small numbers like "3 bedrooms" when hunting for money.
		if v < 1000 {
			continue
		}
		return v
	}
	return 0
}

// discussReply appends the assistant's side of a discuss exchange and keeps
// the workflow suspended at the current node. The human's own line is added
// by the human interaction node, so one round trip adds exactly two messages.
func (e Env) discussReply(ctx context.Context, topic string, state domain.WorkflowState, out domain.AgentOutput) (Result, error) {
	reply, err := e.Caps.Composer.Reply(ctx, topic, state.HumanResponse)
	if err != nil {
		return Result{}, fmt.Errorf("compose discuss reply: %w", err)
	}
	u := suspend(domain.StateUpdate{
		AgentOutputs:    map[string]domain.AgentOutput{out.Agent: out},
		Messages:        []domain.Message{{Role: "assistant", Content: reply, TS: e.ts()}},
		ClearHumanInput: true,
	})
	return Update(u), nil
}
