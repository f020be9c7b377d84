// Package caselinesdk is a minimal Caseline HTTP API client.
package caselinesdk

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

// Client talks to a Caseline server.
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

// Assignment is the API assignment model.
type Assignment struct {
	ID           string  `json:"id"`
	WorkItemID   string  `json:"work_item_id"`
	WorkItemType string  `json:"work_item_type"`
	AssigneeID   string  `json:"assignee_id"`
	UnitID       string  `json:"unit_id,omitempty"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
	AssignedAt   string  `json:"assigned_at"`
	SLADeadline  string  `json:"sla_deadline"`
	SLAStatus    string  `json:"sla_status"`
	Score        float64 `json:"score"`
}

// AssignResult is the auto-assign response.
type AssignResult struct {
	AssignmentID string  `json:"assignment_id"`
	AssigneeID   string  `json:"assignee_id"`
	Status       string  `json:"status"`
	SLADeadline  string  `json:"sla_deadline"`
	Score        float64 `json:"score"`
}

// CapacityReport is the capacity-check response.
type CapacityReport struct {
	Type              string  `json:"type"`
	StaffID           string  `json:"staff_id,omitempty"`
	UnitID            string  `json:"unit_id,omitempty"`
	TotalStaff        int     `json:"total_staff,omitempty"`
	CurrentCount      int     `json:"current_count"`
	WIPLimit          int     `json:"wip_limit"`
	AvailableCapacity int     `json:"available_capacity"`
	UtilizationPct    float64 `json:"utilization_pct"`
	Status            string  `json:"status"`
}

// SweepReport summarizes a manually triggered sweep.
type SweepReport struct {
	Processed      int   `json:"processed"`
	NewlyWarning   int   `json:"newly_warning"`
	NewlyBreached  int   `json:"newly_breached"`
	NewlyEscalated int   `json:"newly_escalated"`
	DurationMS     int64 `json:"duration_ms"`
}

// EscalationEvent is one escalation record.
type EscalationEvent struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignment_id"`
	CreatedAt    string `json:"created_at"`
	Reason       string `json:"reason"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// AutoAssign asks the server to place a work item.
func (c *Client) AutoAssign(ctx context.Context, workItemID, workItemType, priority string, requiredSkills []string, unitID string) (AssignResult, error) {
	body := map[string]any{
		"work_item_id":   workItemID,
		"work_item_type": workItemType,
		"priority":       priority,
	}
	if len(requiredSkills) > 0 {
		body["required_skills"] = requiredSkills
	}
	if unitID != "" {
		body["unit_id"] = unitID
	}
	var resp AssignResult
	err := c.do(ctx, http.MethodPost, "v0/assignments/auto-assign", body, &resp)
	return resp, err
}

// CapacityCheck reports utilization for a staff member or a unit; set
// exactly one of the two ids.
func (c *Client) CapacityCheck(ctx context.Context, staffID, unitID string) (CapacityReport, error) {
	q := url.Values{}
	if staffID != "" {
		q.Set("staff_id", staffID)
	}
	if unitID != "" {
		q.Set("unit_id", unitID)
	}
	var resp CapacityReport
	err := c.do(ctx, http.MethodGet, "v0/capacity/check?"+q.Encode(), nil, &resp)
	return resp, err
}

// TriggerSweep runs one SLA sweep pass now. Admin only.
func (c *Client) TriggerSweep(ctx context.Context) (SweepReport, error) {
	var resp SweepReport
	err := c.do(ctx, http.MethodPost, "v0/admin/sweep", nil, &resp)
	return resp, err
}

// Assignment fetches one assignment by id.
func (c *Client) Assignment(ctx context.Context, id string) (Assignment, error) {
	var resp Assignment
	err := c.do(ctx, http.MethodGet, "v0/assignments/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Escalations returns recent escalation events.
func (c *Client) Escalations(ctx context.Context, limit int) ([]EscalationEvent, error) {
	endpoint := "v0/escalations"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []EscalationEvent
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

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
