package server

import (
	"encoding/json"

	"homeline/internal/domain"
)

// Request payloads

type CreatePropertyRequest struct {
	ID          *string  `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Address     string   `json:"address"`
	City        *string  `json:"city,omitempty"`
	Price       float64  `json:"price"`
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	AreaSqm     *float64 `json:"area_sqm,omitempty"`
	Images      []string `json:"images,omitempty"`
}

type UpdatePropertyRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Address     *string  `json:"address,omitempty"`
	City        *string  `json:"city,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *int     `json:"bathrooms,omitempty"`
	AreaSqm     *float64 `json:"area_sqm,omitempty"`
	Images      []string `json:"images,omitempty"`
	Status      *string  `json:"status,omitempty" enum:"draft,listed,in_workflow,sold"`
}

// ResumeWorkflowRequest carries a human reply. A lead may identify their
// conversation by id, email, or phone; omitted entirely, the reply goes to
// the active lead.
type ResumeWorkflowRequest struct {
	Role      string `json:"role" enum:"broker,lead"`
	Response  string `json:"response"`
	LeadID    string `json:"lead_id,omitempty"`
	LeadEmail string `json:"lead_email,omitempty" format:"email"`
	LeadPhone string `json:"lead_phone,omitempty"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type PropertyResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address"`
	City        string   `json:"city,omitempty"`
	Price       float64  `json:"price"`
	Bedrooms    int      `json:"bedrooms,omitempty"`
	Bathrooms   int      `json:"bathrooms,omitempty"`
	AreaSqm     float64  `json:"area_sqm,omitempty"`
	Images      []string `json:"images,omitempty"`
	Status      string   `json:"status" enum:"draft,listed,in_workflow,sold"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type WorkflowStatusResponse struct {
	PropertyID                string                        `json:"property_id"`
	CurrentStage              string                        `json:"current_stage"`
	Completed                 bool                          `json:"completed"`
	HumanInterventionRequired bool                          `json:"human_intervention_required"`
	NextAction                string                        `json:"next_action,omitempty"`
	StartedAt                 string                        `json:"started_at" format:"date-time"`
	CompletedAt               *string                       `json:"completed_at,omitempty" format:"date-time"`
	Error                     string                        `json:"error,omitempty"`
	AgentOutputs              map[string]domain.AgentOutput `json:"agent_outputs"`
}

type HistoryEntryResponse struct {
	Seq                       int                           `json:"seq"`
	TS                        string                        `json:"ts" format:"date-time"`
	Node                      string                        `json:"node"`
	Stage                     string                        `json:"stage"`
	HumanInterventionRequired bool                          `json:"human_intervention_required"`
	Interrupted               bool                          `json:"interrupted"`
	AgentOutputs              map[string]domain.AgentOutput `json:"agent_outputs"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	PropertyID string         `json:"property_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type PipelineConfigResponse struct {
	Pipeline  pipelineSection  `json:"pipeline"`
	Market    marketSection    `json:"market"`
	Marketing marketingSection `json:"marketing"`
}

type pipelineSection struct {
	QualityThreshold int     `json:"quality_threshold"`
	AutoRejectRatio  float64 `json:"auto_reject_ratio"`
	QualifyScore     int     `json:"qualify_score"`
	RetryLimit       int     `json:"retry_limit"`
}

type marketSection struct {
	DefaultAveragePrice float64 `json:"default_average_price"`
	Tolerance           float64 `json:"tolerance"`
}

type marketingSection struct {
	Channels []string `json:"channels"`
}

type paginatedProperties struct {
	Items      []PropertyResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func propertyResponse(p domain.Property) PropertyResponse {
	return PropertyResponse(p)
}

func mapProperties(items []domain.Property) []PropertyResponse {
	res := make([]PropertyResponse, 0, len(items))
	for _, p := range items {
		res = append(res, propertyResponse(p))
	}
	return res
}

func statusResponse(st domain.WorkflowStatus) WorkflowStatusResponse {
	return WorkflowStatusResponse{
		PropertyID:                st.PropertyID,
		CurrentStage:              string(st.CurrentStage),
		Completed:                 st.Completed,
		HumanInterventionRequired: st.HumanInterventionRequired,
		NextAction:                st.NextAction,
		StartedAt:                 st.StartedAt,
		CompletedAt:               st.CompletedAt,
		Error:                     st.Error,
		AgentOutputs:              st.AgentOutputs,
	}
}

func historyResponse(entries []domain.HistoryEntry) []HistoryEntryResponse {
	res := make([]HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		res = append(res, HistoryEntryResponse{
			Seq:                       h.Seq,
			TS:                        h.TS,
			Node:                      h.Node,
			Stage:                     string(h.Stage),
			HumanInterventionRequired: h.HumanInterventionRequired,
			Interrupted:               h.Interrupted,
			AgentOutputs:              h.AgentOutputs,
		})
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		PropertyID: e.PropertyID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func intOrZero(ptr *int) int {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func floatOrZero(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}
