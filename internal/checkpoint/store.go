package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"homeline/internal/domain"
)

var (
	ErrNotFound = errors.New("checkpoint not found")
	ErrTimeout  = errors.New("checkpoint storage timeout")
)

// Metadata records where a checkpoint sits in the node graph. InterruptedNode
// is written explicitly at suspension time; resume routing reads it back
// instead of re-deriving the node from the stage.
type Metadata struct {
	Node            string `json:"node"`
	NextNode        string `json:"next_node,omitempty"`
	Interrupted     bool   `json:"interrupted"`
	InterruptedNode string `json:"interrupted_node,omitempty"`
	InterruptPrompt string `json:"interrupt_prompt,omitempty"`
}

// Checkpoint is one immutable snapshot of a workflow thread. Seq is
// monotonically increasing per thread; rows are never updated or deleted.
type Checkpoint struct {
	ID        string               `json:"id"`
	ThreadID  string               `json:"thread_id"`
	Seq       int                  `json:"seq"`
	Meta      Metadata             `json:"meta"`
	State     domain.WorkflowState `json:"state"`
	CreatedAt string               `json:"created_at" format:"date-time"`
}

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SaveTx appends a checkpoint inside the caller's transaction so the snapshot
// and its audit event commit atomically. The per-thread sequence is assigned
// here; the UNIQUE(thread_id,seq) constraint rejects concurrent writers.
func (s Store) SaveTx(ctx context.Context, tx *sql.Tx, threadID string, meta Metadata, state domain.WorkflowState) (Checkpoint, error) {
	var seq int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),0)+1 FROM checkpoints WHERE thread_id=?`, threadID).Scan(&seq)
	if err != nil {
		return Checkpoint{}, mapErr(fmt.Errorf("next checkpoint seq for %s: %w", threadID, err))
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("encode workflow state: %w", err)
	}
	cp := Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Seq:       seq,
		Meta:      meta,
		State:     state,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO checkpoints(id,thread_id,seq,node,next_node,interrupted,interrupted_node,interrupt_prompt,state_json,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		cp.ID, cp.ThreadID, cp.Seq, meta.Node, nullable(meta.NextNode), boolInt(meta.Interrupted), nullable(meta.InterruptedNode), nullable(meta.InterruptPrompt), string(payload), cp.CreatedAt)
	if err != nil {
		return Checkpoint{}, mapErr(fmt.Errorf("save checkpoint %s/%d: %w", threadID, seq, err))
	}
	return cp, nil
}

// LoadLatest returns the highest-seq checkpoint for a thread.
func (s Store) LoadLatest(ctx context.Context, threadID string) (Checkpoint, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id,thread_id,seq,node,next_node,interrupted,interrupted_node,interrupt_prompt,state_json,created_at
FROM checkpoints WHERE thread_id=? ORDER BY seq DESC LIMIT 1`, threadID)
	cp, err := scanCheckpoint(row.Scan)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return cp, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
		}
		return cp, mapErr(err)
	}
	return cp, nil
}

// LoadHistory returns all checkpoints for a thread in ascending seq order.
func (s Store) LoadHistory(ctx context.Context, threadID string) ([]Checkpoint, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,thread_id,seq,node,next_node,interrupted,interrupted_node,interrupt_prompt,state_json,created_at
FROM checkpoints WHERE thread_id=? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var res []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, mapErr(err)
		}
		res = append(res, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	return res, nil
}

// Health verifies the checkpoint table is reachable.
func (s Store) Health(ctx context.Context) error {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM checkpoints WHERE seq=0`).Scan(&n); err != nil {
		return mapErr(fmt.Errorf("checkpoint store health: %w", err))
	}
	return nil
}

func scanCheckpoint(scan func(...any) error) (Checkpoint, error) {
	var cp Checkpoint
	var nextNode, interruptedNode, prompt sql.NullString
	var interrupted int
	var payload string
	err := scan(&cp.ID, &cp.ThreadID, &cp.Seq, &cp.Meta.Node, &nextNode, &interrupted, &interruptedNode, &prompt, &payload, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return cp, ErrNotFound
	}
	if err != nil {
		return cp, err
	}
	cp.Meta.Interrupted = interrupted != 0
	if nextNode.Valid {
		cp.Meta.NextNode = nextNode.String
	}
	if interruptedNode.Valid {
		cp.Meta.InterruptedNode = interruptedNode.String
	}
	if prompt.Valid {
		cp.Meta.InterruptPrompt = prompt.String
	}
	if err := json.Unmarshal([]byte(payload), &cp.State); err != nil {
		return cp, fmt.Errorf("decode workflow state %s/%d: %w", cp.ThreadID, cp.Seq, err)
	}
	return cp, nil
}

// mapErr surfaces storage timeouts as ErrTimeout so callers can distinguish
// them from data corruption or missing rows.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
