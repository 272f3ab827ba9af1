package server

import (
	"encoding/json"

	"gigledger/internal/domain"
)

type InitAdminRequest struct {
	Identity string `json:"identity" example:"admin-1"`
}

type WhitelistEmployerRequest struct {
	Identity    string `json:"identity" example:"employer-1"`
	UserName    string `json:"user_name" example:"Acme Ops"`
	CompanyName string `json:"company_name" example:"Acme Inc"`
}

type WhitelistFreelancerRequest struct {
	Identity   string `json:"identity" example:"freelancer-1"`
	UserName   string `json:"user_name" example:"Dev One"`
	Profession string `json:"profession" enum:"developer,designer,content_writer"`
}

type CreateProjectRequest struct {
	Number      uint64 `json:"number" example:"1"`
	Title       string `json:"title" example:"Build the widget"`
	TotalBudget int64  `json:"total_budget" example:"1000"`
}

type ProjectDetailsRequest struct {
	Description string `json:"description"`
	Requirement string `json:"requirement" enum:"developer,designer,content_writer"`
	Deadline    string `json:"deadline" format:"date-time"`
}

type AddTaskRequest struct {
	Number      uint64 `json:"number" example:"1"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Budget      int64  `json:"budget" example:"400"`
}

type SubmitTaskRequest struct {
	Description string `json:"description,omitempty"`
	PocType     string `json:"poc_type" enum:"unit_tests,design_link,document_link"`
	Proof       string `json:"proof"`
}

type ApproveTaskRequest struct {
	Destination string `json:"destination" example:"freelancer-1"`
}

type RateFreelancerRequest struct {
	Stars    int    `json:"stars" minimum:"1" maximum:"5"`
	Feedback string `json:"feedback,omitempty"`
}

type FundAccountRequest struct {
	Owner  string `json:"owner"`
	Amount int64  `json:"amount"`
}

type CreateCollectionRequest struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type MintBadgeRequest struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type CreateAPIKeyRequest struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

type CreateAPIKeyResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type DevLoginRequest struct {
	Identity string `json:"identity"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type BalanceResponse struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

type ContainsResponse struct {
	Identity string `json:"identity"`
	Active   bool   `json:"active"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityAddr string          `json:"entity_addr,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage([]byte("{}"))
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage([]byte(evt.Payload))
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityAddr: evt.EntityAddr,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}
