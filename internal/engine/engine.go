// Package engine drives property sale workflows over a fixed node graph.
// Every node execution is checkpointed; interrupts park the thread until a
// human resumes it.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"homeline/internal/agents"
	"homeline/internal/capability"
	"homeline/internal/checkpoint"
	"homeline/internal/config"
	"homeline/internal/domain"
	"homeline/internal/events"
	"homeline/internal/repo"
)

// allowedNext is the workflow graph: the only redirects an agent may make.
// Negotiation can loop on itself (fresh offer) and fall back to lead
// management (buyer withdrew).
var allowedNext = map[agents.Node][]agents.Node{
	agents.NodeInputValidation: {agents.NodeMarketing},
	agents.NodeMarketing:       {agents.NodeLeadManagement},
	agents.NodeLeadManagement:  {agents.NodeNegotiation},
	agents.NodeNegotiation:     {agents.NodeNegotiation, agents.NodeLegal, agents.NodeLeadManagement},
	agents.NodeLegal:           {agents.NodeClosure},
	agents.NodeClosure:         {},
	agents.NodeHuman: {
		agents.NodeInputValidation, agents.NodeMarketing, agents.NodeLeadManagement,
		agents.NodeNegotiation, agents.NodeLegal, agents.NodeClosure,
	},
}

// nodeStart labels the implicit start checkpoint; no agent runs under it.
const nodeStart = "start"

func transitionAllowed(from, to agents.Node) bool {
	for _, n := range allowedNext[from] {
		if n == to {
			return true
		}
	}
	return false
}

type Engine struct {
	DB          *sql.DB
	Repo        repo.Repo
	Checkpoints checkpoint.Store
	Events      events.Writer
	Config      *config.Config
	Agents      map[agents.Node]agents.Agent
	Human       agents.HumanNode
	Now         func() time.Time

	// one mutex per thread; a resume that cannot take it immediately is a
	// conflict, not a queue entry
	locks sync.Map
}

func New(db *sql.DB, cfg *config.Config, caps capability.Set) *Engine {
	e := &Engine{
		DB:          db,
		Repo:        repo.Repo{DB: db},
		Checkpoints: checkpoint.Store{DB: db},
		Events:      events.Writer{DB: db},
		Config:      cfg,
		Now:         time.Now,
	}
	env := agents.Env{Caps: caps, Cfg: cfg, Now: e.now}
	e.Agents = agents.All(env)
	e.Human = agents.HumanNode{Env: env}
	e.Checkpoints.Now = e.now
	e.Events.Now = e.now
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) lockFor(threadID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(threadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreateProperty registers a listing and is the precondition for a workflow.
func (e *Engine) CreateProperty(ctx context.Context, p domain.Property, actorID string) (domain.Property, error) {
	if e.Config == nil {
		return domain.Property{}, errors.New("config not loaded")
	}
	if p.Title == "" {
		return domain.Property{}, errors.New("title is required")
	}
	if p.Address == "" {
		return domain.Property{}, errors.New("address is required")
	}
	if p.Price < 0 {
		return domain.Property{}, errors.New("price must not be negative")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = "draft"
	}
	now := e.now().UTC().Format(time.RFC3339)
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Property{}, err
	}
	defer tx.Rollback()
	images, _ := propertyImagesJSON(p.Images)
	if _, err := tx.ExecContext(ctx, `INSERT INTO properties(id,title,description,address,city,price,bedrooms,bathrooms,area_sqm,images_json,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, nullable(p.Description), p.Address, nullable(p.City), p.Price, p.Bedrooms, p.Bathrooms, p.AreaSqm, images, p.Status, p.CreatedAt, p.UpdatedAt); err != nil {
		return domain.Property{}, fmt.Errorf("insert property: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypePropertyCreated, p.ID, "property", p.ID, actorID, events.EventPayload{"title": p.Title, "price": p.Price}); err != nil {
		return domain.Property{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Property{}, err
	}
	return p, nil
}

// UpdateProperty rewrites a listing and records the edit in the audit log.
func (e *Engine) UpdateProperty(ctx context.Context, p domain.Property, actorID string) (domain.Property, error) {
	if p.ID == "" {
		return domain.Property{}, errors.New("id is required")
	}
	if p.Title == "" {
		return domain.Property{}, errors.New("title is required")
	}
	if p.Address == "" {
		return domain.Property{}, errors.New("address is required")
	}
	if p.Price < 0 {
		return domain.Property{}, errors.New("price must not be negative")
	}
	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Property{}, err
	}
	defer tx.Rollback()
	images, _ := propertyImagesJSON(p.Images)
	res, err := tx.ExecContext(ctx, `UPDATE properties SET title=?, description=?, address=?, city=?, price=?, bedrooms=?, bathrooms=?, area_sqm=?, images_json=?, status=?, updated_at=? WHERE id=?`,
		p.Title, nullable(p.Description), p.Address, nullable(p.City), p.Price, p.Bedrooms, p.Bathrooms, p.AreaSqm, images, p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return domain.Property{}, fmt.Errorf("update property: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Property{}, fmt.Errorf("property %s: %w", p.ID, repo.ErrNotFound)
	}
	if err := e.Events.Append(ctx, tx, events.TypePropertyUpdated, p.ID, "property", p.ID, actorID, events.EventPayload{"title": p.Title, "price": p.Price, "status": p.Status}); err != nil {
		return domain.Property{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Property{}, err
	}
	return p, nil
}

// StartWorkflow begins the sale pipeline for a property. The thread id is
// the property id; one workflow per property, ever.
func (e *Engine) StartWorkflow(ctx context.Context, propertyID, actorID string) (domain.WorkflowStatus, error) {
	if e.Config == nil {
		return domain.WorkflowStatus{}, errors.New("config not loaded")
	}
	prop, err := e.Repo.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.WorkflowStatus{}, fmt.Errorf("property %s: %w", propertyID, repo.ErrNotFound)
		}
		return domain.WorkflowStatus{}, err
	}

	mu := e.lockFor(propertyID)
	if !mu.TryLock() {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s: %w", propertyID, ErrResumeInProgress)
	}
	defer mu.Unlock()

	if _, err := e.Checkpoints.LoadLatest(ctx, propertyID); err == nil {
		return domain.WorkflowStatus{}, fmt.Errorf("workflow for property %s already started: %w", propertyID, ErrStageConflict)
	} else if !errors.Is(err, checkpoint.ErrNotFound) {
		return domain.WorkflowStatus{}, err
	}

	state := domain.WorkflowState{
		PropertyID:   propertyID,
		Property:     prop.Snapshot(),
		Stage:        domain.StageInputValidation,
		AgentOutputs: map[string]domain.AgentOutput{},
		StartedAt:    e.now().UTC().Format(time.RFC3339),
	}
	// The start checkpoint anchors the thread: the property flips to
	// in_workflow in the same transaction, so a failed write leaves neither
	// a half-started thread nor a listing stuck in_workflow.
	if err := e.saveStartCheckpoint(ctx, propertyID, state, actorID); err != nil {
		return domain.WorkflowStatus{}, err
	}
	final, err := e.runPass(ctx, propertyID, state, agents.NodeInputValidation, actorID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	_ = final
	return e.Status(ctx, propertyID)
}

// SubmitMessage feeds a buyer or broker message into a parked thread: one
// that is waiting on the market (new leads, a revised offer) rather than on
// a decision. Interrupted threads take input through ResumeWorkflow instead.
func (e *Engine) SubmitMessage(ctx context.Context, threadID string, in agents.HumanInput, actorID string) (domain.WorkflowStatus, error) {
	if e.Config == nil {
		return domain.WorkflowStatus{}, errors.New("config not loaded")
	}
	if err := in.Validate(); err != nil {
		return domain.WorkflowStatus{}, err
	}
	mu := e.lockFor(threadID)
	if !mu.TryLock() {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s: %w", threadID, ErrResumeInProgress)
	}
	defer mu.Unlock()

	cp, err := e.Checkpoints.LoadLatest(ctx, threadID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	if cp.State.Stage == domain.StageCompleted {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s already completed: %w", threadID, ErrStageConflict)
	}
	if recovered, err := e.finishCrashedPass(ctx, threadID, cp, actorID); err != nil {
		return domain.WorkflowStatus{}, err
	} else if recovered {
		return e.Status(ctx, threadID)
	}
	if cp.Meta.Interrupted {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s is waiting for a resume, not a message: %w", threadID, ErrStageConflict)
	}
	target, ok := agents.NodeForStage(cp.State.Stage)
	if !ok || (target != agents.NodeLeadManagement && target != agents.NodeNegotiation) {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s at stage %s is not awaiting messages: %w", threadID, cp.State.Stage, ErrStageConflict)
	}
	return e.feedHumanInput(ctx, threadID, cp.State, in, target, actorID, events.TypeWorkflowMessage)
}

// ResumeWorkflow feeds a human reply into an interrupted thread. Only one
// resume per thread runs at a time; a second caller gets ErrResumeInProgress.
func (e *Engine) ResumeWorkflow(ctx context.Context, threadID string, in agents.HumanInput, actorID string) (domain.WorkflowStatus, error) {
	if e.Config == nil {
		return domain.WorkflowStatus{}, errors.New("config not loaded")
	}
	if err := in.Validate(); err != nil {
		return domain.WorkflowStatus{}, err
	}
	mu := e.lockFor(threadID)
	if !mu.TryLock() {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s: %w", threadID, ErrResumeInProgress)
	}
	defer mu.Unlock()

	cp, err := e.Checkpoints.LoadLatest(ctx, threadID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	if cp.State.Stage == domain.StageCompleted {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s already completed: %w", threadID, ErrStageConflict)
	}
	if recovered, err := e.finishCrashedPass(ctx, threadID, cp, actorID); err != nil {
		return domain.WorkflowStatus{}, err
	} else if recovered {
		return e.Status(ctx, threadID)
	}
	if !cp.Meta.Interrupted {
		return domain.WorkflowStatus{}, fmt.Errorf("thread %s is not waiting for input: %w", threadID, ErrStageConflict)
	}
	target := agents.Node(cp.Meta.InterruptedNode)
	return e.feedHumanInput(ctx, threadID, cp.State, in, target, actorID, events.TypeWorkflowResumed)
}

// feedHumanInput runs the human node against state and continues the pass at
// the node the reply belongs to.
func (e *Engine) feedHumanInput(ctx context.Context, threadID string, state domain.WorkflowState, in agents.HumanInput, target agents.Node, actorID, evtType string) (domain.WorkflowStatus, error) {
	res, err := e.Human.Resume(state, in, target)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	state.Apply(res.StateUpdate())
	next, _ := res.Next()
	if !transitionAllowed(agents.NodeHuman, next) {
		return domain.WorkflowStatus{}, fmt.Errorf("human node cannot route to %s", next)
	}
	// The human node gets its own checkpoint so history shows the reply
	// before its consequences.
	meta := checkpoint.Metadata{Node: string(agents.NodeHuman), NextNode: string(next)}
	if _, err := e.saveCheckpoint(ctx, threadID, meta, state, actorID, evtType, events.EventPayload{"role": string(in.Role)}); err != nil {
		return domain.WorkflowStatus{}, err
	}
	final, err := e.runPass(ctx, threadID, state, next, actorID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	_ = final
	return e.Status(ctx, threadID)
}

// finishCrashedPass continues a pass the process died in the middle of. A
// latest checkpoint that is neither interrupted nor pass-ending still names
// the node scheduled next; everything that node needs, including a staged
// human reply, was saved with it, so re-entering there replays the rest of
// the pass exactly once.
func (e *Engine) finishCrashedPass(ctx context.Context, threadID string, cp checkpoint.Checkpoint, actorID string) (bool, error) {
	if cp.Meta.Interrupted || cp.Meta.NextNode == "" {
		return false, nil
	}
	next := agents.Node(cp.Meta.NextNode)
	if _, ok := e.Agents[next]; !ok {
		return false, fmt.Errorf("checkpoint for %s schedules unknown node %s", threadID, next)
	}
	if _, err := e.runPass(ctx, threadID, cp.State, next, actorID); err != nil {
		return false, err
	}
	return true, nil
}

// runPass executes nodes until an agent ends the pass, the workflow
// completes, or an agent failure is absorbed into an interrupt.
func (e *Engine) runPass(ctx context.Context, threadID string, state domain.WorkflowState, node agents.Node, actorID string) (domain.WorkflowState, error) {
	for {
		agent, ok := e.Agents[node]
		if !ok {
			return state, fmt.Errorf("no agent registered for node %s", node)
		}
		prevStage := state.Stage
		res, err := executeAgent(ctx, agent, state)
		if err != nil {
			return e.absorbFailure(ctx, threadID, state, node, actorID, err)
		}
		state.Apply(res.StateUpdate())

		if next, redirect := res.Next(); redirect {
			if !transitionAllowed(node, next) {
				return state, fmt.Errorf("agent %s redirected to %s: transition not in graph", node, next)
			}
			meta := checkpoint.Metadata{Node: string(node), NextNode: string(next)}
			evtType, payload := stageEvent(prevStage, state.Stage)
			if _, err := e.saveCheckpoint(ctx, threadID, meta, state, actorID, evtType, payload); err != nil {
				return state, err
			}
			node = next
			continue
		}

		switch {
		case state.Stage == domain.StageCompleted:
			meta := checkpoint.Metadata{Node: string(node)}
			if _, err := e.saveCheckpoint(ctx, threadID, meta, state, actorID, events.TypeWorkflowCompleted, events.EventPayload{"completed_at": deref(state.CompletedAt)}); err != nil {
				return state, err
			}
			return state, nil
		case state.HumanInterventionRequired:
			meta := checkpoint.Metadata{
				Node:            string(node),
				Interrupted:     true,
				InterruptedNode: string(node),
				InterruptPrompt: interruptPrompt(state, node),
			}
			if _, err := e.saveCheckpoint(ctx, threadID, meta, state, actorID, events.TypeWorkflowSuspended, events.EventPayload{
				"node":   string(node),
				"stage":  string(state.Stage),
				"prompt": meta.InterruptPrompt,
			}); err != nil {
				return state, err
			}
			return state, nil
		default:
			meta := checkpoint.Metadata{Node: string(node)}
			evtType, payload := stageEvent(prevStage, state.Stage)
			if _, err := e.saveCheckpoint(ctx, threadID, meta, state, actorID, evtType, payload); err != nil {
				return state, err
			}
			return state, nil
		}
	}
}

// absorbFailure turns an agent error into an interrupt instead of losing the
// thread: the failure is recorded in state, the retry counter climbs, and the
// workflow waits for a human.
func (e *Engine) absorbFailure(ctx context.Context, threadID string, state domain.WorkflowState, node agents.Node, actorID string, agentErr error) (domain.WorkflowState, error) {
	retry := state.RetryCount + 1
	prompt := fmt.Sprintf("stage %s failed (attempt %d of %d): %v", node, retry, e.Config.Pipeline.RetryLimit, agentErr)
	if retry >= e.Config.Pipeline.RetryLimit {
		prompt = fmt.Sprintf("stage %s failed %d times, retries exhausted; human input required: %v", node, retry, agentErr)
	}
	out := domain.AgentOutput{
		Agent:      string(node),
		TS:         e.now().UTC().Format(time.RFC3339),
		Success:    false,
		Errors:     []string{agentErr.Error()},
		NextAction: prompt,
	}
	state.Apply(domain.StateUpdate{
		HumanInterventionRequired: ptrBool(true),
		AgentOutputs:              map[string]domain.AgentOutput{out.Agent: out},
		Errors:                    []string{fmt.Sprintf("%s: %v", node, agentErr)},
		RetryCount:                ptrInt(retry),
		ClearHumanInput:           true,
	})
	meta := checkpoint.Metadata{
		Node:            string(node),
		Interrupted:     true,
		InterruptedNode: string(node),
		InterruptPrompt: prompt,
	}
	if _, err := e.saveCheckpoint(ctx, threadID, meta, state, actorID, events.TypeWorkflowSuspended, events.EventPayload{
		"node":  string(node),
		"error": agentErr.Error(),
	}); err != nil {
		return state, err
	}
	return state, nil
}

func executeAgent(ctx context.Context, a agents.Agent, state domain.WorkflowState) (res agents.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", a.Node(), r)
		}
	}()
	return a.Execute(ctx, state)
}

// saveCheckpoint persists a snapshot and its audit trail atomically. The
// property record flips to sold in the same transaction that records
// completion.
func (e *Engine) saveCheckpoint(ctx context.Context, threadID string, meta checkpoint.Metadata, state domain.WorkflowState, actorID, evtType string, payload events.EventPayload) (checkpoint.Checkpoint, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	defer tx.Rollback()

	cp, err := e.Checkpoints.SaveTx(ctx, tx, threadID, meta, state)
	if err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeCheckpointSaved, threadID, "checkpoint", cp.ID, actorID, events.EventPayload{
		"seq":  cp.Seq,
		"node": meta.Node,
	}); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	if evtType != "" {
		if err := e.Events.Append(ctx, tx, evtType, threadID, "workflow", threadID, actorID, payload); err != nil {
			return checkpoint.Checkpoint{}, err
		}
	}
	if state.Stage == domain.StageCompleted && meta.Node != string(agents.NodeHuman) {
		now := e.now().UTC().Format(time.RFC3339)
		if err := e.Repo.UpdatePropertyStatusTx(ctx, tx, threadID, "sold", now); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return checkpoint.Checkpoint{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	return cp, nil
}

// saveStartCheckpoint writes the thread's first checkpoint. The initial
// state, the workflow.started event, and the listing's status change commit
// together or not at all.
func (e *Engine) saveStartCheckpoint(ctx context.Context, propertyID string, state domain.WorkflowState, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	meta := checkpoint.Metadata{Node: nodeStart, NextNode: string(agents.NodeInputValidation)}
	cp, err := e.Checkpoints.SaveTx(ctx, tx, propertyID, meta, state)
	if err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeCheckpointSaved, propertyID, "checkpoint", cp.ID, actorID, events.EventPayload{
		"seq":  cp.Seq,
		"node": meta.Node,
	}); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.TypeWorkflowStarted, propertyID, "workflow", propertyID, actorID, events.EventPayload{}); err != nil {
		return err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdatePropertyStatusTx(ctx, tx, propertyID, "in_workflow", now); err != nil {
		return err
	}
	return tx.Commit()
}

// Status reports the thread's current position. Reading it is a pure query:
// calling it any number of times changes nothing.
func (e *Engine) Status(ctx context.Context, threadID string) (domain.WorkflowStatus, error) {
	cp, err := e.Checkpoints.LoadLatest(ctx, threadID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	return statusFromCheckpoint(cp), nil
}

// History returns every checkpoint of a thread, oldest first.
func (e *Engine) History(ctx context.Context, threadID string) ([]domain.HistoryEntry, error) {
	cps, err := e.Checkpoints.LoadHistory(ctx, threadID)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(cps))
	for _, cp := range cps {
		entries = append(entries, domain.HistoryEntry{
			Seq:                       cp.Seq,
			TS:                        cp.CreatedAt,
			Node:                      cp.Meta.Node,
			Stage:                     cp.State.Stage,
			HumanInterventionRequired: cp.State.HumanInterventionRequired,
			Interrupted:               cp.Meta.Interrupted,
			AgentOutputs:              cp.State.AgentOutputs,
		})
	}
	return entries, nil
}

// Health checks the storage layer underneath running workflows.
func (e *Engine) Health(ctx context.Context) error {
	return e.Checkpoints.Health(ctx)
}

func statusFromCheckpoint(cp checkpoint.Checkpoint) domain.WorkflowStatus {
	st := domain.WorkflowStatus{
		PropertyID:                cp.State.PropertyID,
		CurrentStage:              cp.State.Stage,
		Completed:                 cp.State.Stage == domain.StageCompleted,
		HumanInterventionRequired: cp.State.HumanInterventionRequired,
		NextAction:                cp.Meta.InterruptPrompt,
		StartedAt:                 cp.State.StartedAt,
		CompletedAt:               cp.State.CompletedAt,
		AgentOutputs:              cp.State.AgentOutputs,
	}
	if st.NextAction == "" && !st.Completed {
		// Parked threads carry no interrupt prompt; the last agent output
		// says what the stage is waiting for.
		if out, ok := cp.State.AgentOutputs[cp.Meta.Node]; ok {
			st.NextAction = out.NextAction
		}
	}
	if n := len(cp.State.Errors); n > 0 && cp.State.HumanInterventionRequired {
		st.Error = cp.State.Errors[n-1]
	}
	return st
}

func stageEvent(prev, cur domain.Stage) (string, events.EventPayload) {
	if prev == cur {
		return "", nil
	}
	return events.TypeStageAdvanced, events.EventPayload{"from": string(prev), "to": string(cur)}
}

func interruptPrompt(state domain.WorkflowState, node agents.Node) string {
	if out, ok := state.AgentOutputs[string(node)]; ok && out.NextAction != "" {
		return out.NextAction
	}
	return fmt.Sprintf("stage %s is waiting for human input", state.Stage)
}

func propertyImagesJSON(images []string) (any, error) {
	if len(images) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptrBool(b bool) *bool { return &b }
func ptrInt(i int) *int    { return &i }

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
