package gigledgersdk

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

// Client is a minimal GigLedger HTTP API client.
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

// Project represents the API project model (partial).
type Project struct {
	Addr            string `json:"addr"`
	Employer        string `json:"employer"`
	Number          int64  `json:"number"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	TotalBudget     int64  `json:"total_budget"`
	RemainingBudget int64  `json:"remaining_budget"`
	TasksCount      int64  `json:"tasks_count"`
	TasksCompleted  int64  `json:"tasks_completed"`
}

// Task represents the API task model (partial).
type Task struct {
	Addr               string  `json:"addr"`
	ProjectAddr        string  `json:"project_addr"`
	Number             int64   `json:"number"`
	Title              string  `json:"title"`
	Status             string  `json:"status"`
	Budget             int64   `json:"budget"`
	AssignedFreelancer *string `json:"assigned_freelancer,omitempty"`
}

// Overview represents a freelancer's reputation summary.
type Overview struct {
	Freelancer        string   `json:"freelancer"`
	ProjectsCompleted int64    `json:"projects_completed"`
	StarCounts        [5]int64 `json:"star_counts"`
	AverageRating     float64  `json:"average_rating"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityAddr string `json:"entity_addr,omitempty"`
	ActorID    string `json:"actor_id"`
}

// PaginatedEvents wraps event listings with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code carries the machine-readable
// error code when the server returned its standard envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject opens a project funded from the caller's balance. The
// number must be unique among the caller's projects.
func (c *Client) CreateProject(ctx context.Context, number uint64, title string, totalBudget int64) (Project, error) {
	body := map[string]any{
		"number":       number,
		"title":        title,
		"total_budget": totalBudget,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// AddProjectDetails attaches description, requirement and deadline.
func (c *Client) AddProjectDetails(ctx context.Context, projectAddr, description, requirement, deadline string) error {
	body := map[string]any{
		"description": description,
		"requirement": requirement,
		"deadline":    deadline,
	}
	endpoint := fmt.Sprintf("v0/projects/%s/details", url.PathEscape(projectAddr))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// AcceptProject accepts a project as the authenticated freelancer.
func (c *Client) AcceptProject(ctx context.Context, projectAddr string) (Project, error) {
	var resp Project
	endpoint := fmt.Sprintf("v0/projects/%s/accept", url.PathEscape(projectAddr))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// GetProject fetches a project by address.
func (c *Client) GetProject(ctx context.Context, projectAddr string) (Project, error) {
	var resp Project
	endpoint := fmt.Sprintf("v0/projects/%s", url.PathEscape(projectAddr))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AddTask adds a budgeted task to a project. The number must be unique
// within the project.
func (c *Client) AddTask(ctx context.Context, projectAddr string, number uint64, title, description string, budget int64) (Task, error) {
	body := map[string]any{
		"number":      number,
		"title":       title,
		"description": description,
		"budget":      budget,
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/projects/%s/tasks", url.PathEscape(projectAddr))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// SubmitTask submits proof of work for a task.
func (c *Client) SubmitTask(ctx context.Context, taskAddr, description, pocType, proof string) (Task, error) {
	body := map[string]any{
		"description": description,
		"poc_type":    pocType,
		"proof":       proof,
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/submit", url.PathEscape(taskAddr))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ApproveTask approves an in-review task, paying the destination freelancer.
func (c *Client) ApproveTask(ctx context.Context, taskAddr, destination string) (Task, error) {
	body := map[string]any{"destination": destination}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/approve", url.PathEscape(taskAddr))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RejectTask sends an in-review task back for rework.
func (c *Client) RejectTask(ctx context.Context, taskAddr string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/reject", url.PathEscape(taskAddr))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// RateFreelancer rates the freelancer who delivered a completed project.
func (c *Client) RateFreelancer(ctx context.Context, projectAddr string, stars int, feedback string) error {
	body := map[string]any{
		"stars":    stars,
		"feedback": feedback,
	}
	endpoint := fmt.Sprintf("v0/projects/%s/rating", url.PathEscape(projectAddr))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// GetOverview fetches a freelancer's reputation overview.
func (c *Client) GetOverview(ctx context.Context, freelancer string) (Overview, error) {
	var resp Overview
	endpoint := fmt.Sprintf("v0/overviews/%s", url.PathEscape(freelancer))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Balance fetches a token balance.
func (c *Client) Balance(ctx context.Context, owner string) (int64, error) {
	var resp struct {
		Owner   string `json:"owner"`
		Balance int64  `json:"balance"`
	}
	endpoint := fmt.Sprintf("v0/balances/%s", url.PathEscape(owner))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Balance, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v0/events"
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
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
