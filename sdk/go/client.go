package homelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Homeline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Property represents the API property model.
type Property struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Address   string  `json:"address"`
	City      string  `json:"city,omitempty"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// WorkflowStatus is the facade's read model for one workflow.
type WorkflowStatus struct {
	PropertyID                string         `json:"property_id"`
	CurrentStage              string         `json:"current_stage"`
	Completed                 bool           `json:"completed"`
	HumanInterventionRequired bool           `json:"human_intervention_required"`
	NextAction                string         `json:"next_action,omitempty"`
	StartedAt                 string         `json:"started_at"`
	CompletedAt               *string        `json:"completed_at,omitempty"`
	Error                     string         `json:"error,omitempty"`
	AgentOutputs              map[string]any `json:"agent_outputs"`
}

// HistoryEntry is one checkpoint of a workflow thread.
type HistoryEntry struct {
	Seq                       int            `json:"seq"`
	TS                        string         `json:"ts"`
	Node                      string         `json:"node"`
	Stage                     string         `json:"stage"`
	HumanInterventionRequired bool           `json:"human_intervention_required"`
	Interrupted               bool           `json:"interrupted"`
	AgentOutputs              map[string]any `json:"agent_outputs"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	PropertyID string         `json:"property_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedProperties wraps property listings with cursors.
type PaginatedProperties struct {
	Items      []Property `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateProperty creates a listing.
func (c *Client) CreateProperty(ctx context.Context, title, address string, price float64) (Property, error) {
	body := map[string]any{
		"title":   title,
		"address": address,
		"price":   price,
	}
	var resp Property
	err := c.do(ctx, http.MethodPost, "v0/properties", body, &resp)
	return resp, err
}

// GetProperty fetches a listing by id.
func (c *Client) GetProperty(ctx context.Context, id string) (Property, error) {
	var resp Property
	err := c.do(ctx, http.MethodGet, c.propertyPath(id, ""), nil, &resp)
	return resp, err
}

// ListProperties returns a page of listings.
func (c *Client) ListProperties(ctx context.Context, limit int, cursor string) (PaginatedProperties, error) {
	endpoint := withPageParams("v0/properties", limit, cursor)
	var resp PaginatedProperties
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StartWorkflow begins the sale workflow for a property.
func (c *Client) StartWorkflow(ctx context.Context, propertyID string) (WorkflowStatus, error) {
	var resp WorkflowStatus
	err := c.do(ctx, http.MethodPost, c.propertyPath(propertyID, "workflow/start"), nil, &resp)
	return resp, err
}

// HumanReply is a resume or message payload. A lead may identify their
// conversation by id, email, or phone; all three may be empty for the
// active lead.
type HumanReply struct {
	Role      string `json:"role"`
	Response  string `json:"response"`
	LeadID    string `json:"lead_id,omitempty"`
	LeadEmail string `json:"lead_email,omitempty"`
	LeadPhone string `json:"lead_phone,omitempty"`
}

// ResumeWorkflow feeds a human reply into an interrupted workflow. leadID may
// be empty; it names the conversation when role is "lead".
func (c *Client) ResumeWorkflow(ctx context.Context, propertyID, role, response, leadID string) (WorkflowStatus, error) {
	return c.Resume(ctx, propertyID, HumanReply{Role: role, Response: response, LeadID: leadID})
}

// Resume feeds a full reply payload into an interrupted workflow.
func (c *Client) Resume(ctx context.Context, propertyID string, reply HumanReply) (WorkflowStatus, error) {
	var resp WorkflowStatus
	err := c.do(ctx, http.MethodPost, c.propertyPath(propertyID, "workflow/resume"), reply, &resp)
	return resp, err
}

// Message sends a buyer or broker message to a parked workflow: one waiting
// on the market rather than on a pending decision.
func (c *Client) Message(ctx context.Context, propertyID string, reply HumanReply) (WorkflowStatus, error) {
	var resp WorkflowStatus
	err := c.do(ctx, http.MethodPost, c.propertyPath(propertyID, "workflow/message"), reply, &resp)
	return resp, err
}

// WorkflowStatus returns the current position of a workflow.
func (c *Client) WorkflowStatus(ctx context.Context, propertyID string) (WorkflowStatus, error) {
	var resp WorkflowStatus
	err := c.do(ctx, http.MethodGet, c.propertyPath(propertyID, "workflow"), nil, &resp)
	return resp, err
}

// WorkflowHistory returns every checkpoint of a workflow, oldest first.
func (c *Client) WorkflowHistory(ctx context.Context, propertyID string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, c.propertyPath(propertyID, "workflow/history"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := withPageParams("v0/events", limit, cursor)
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) propertyPath(id, suffix string) string {
	p := fmt.Sprintf("v0/properties/%s", url.PathEscape(id))
	if suffix != "" {
		p += "/" + strings.TrimLeft(suffix, "/")
	}
	return p
}

func withPageParams(endpoint string, limit int, cursor string) string {
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
