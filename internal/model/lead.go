package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// LeadStatus is the canonical lifecycle state of a lead. Stores that persist a
// different vocabulary translate at their boundary (see vocab.go).
type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "pending"
	LeadStatusProcessing LeadStatus = "processing"
	LeadStatusCompleted  LeadStatus = "completed"
	LeadStatusFailed     LeadStatus = "failed"
)

// AllLeadStatuses returns every canonical lead status.
func AllLeadStatuses() []LeadStatus {
	return []LeadStatus{
		LeadStatusPending,
		LeadStatusProcessing,
		LeadStatusCompleted,
		LeadStatusFailed,
	}
}

// IsTerminal reports whether no further automatic transition follows s.
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusCompleted || s == LeadStatusFailed
}

// LeadSource records how a lead entered the system.
type LeadSource string

const (
	LeadSourceExcel   LeadSource = "excel"
	LeadSourceManual  LeadSource = "manual"
	LeadSourceScraped LeadSource = "scraped"
)

// AllLeadSources returns every canonical lead source.
func AllLeadSources() []LeadSource {
	return []LeadSource{LeadSourceExcel, LeadSourceManual, LeadSourceScraped}
}

// Lead is one prospective customer targeted for outreach.
type Lead struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Website      string     `json:"website,omitempty"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Status       LeadStatus `json:"status"`
	Source       LeadSource `json:"source,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	Body         string     `json:"body,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LeadResult is the terminal outcome written back for a lead.
type LeadResult struct {
	Status       LeadStatus `json:"status"`
	Subject      string     `json:"subject,omitempty"`
	Body         string     `json:"body,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// CompletedResult builds the success outcome for a generated draft.
func CompletedResult(draft EmailDraft) LeadResult {
	return LeadResult{
		Status:  LeadStatusCompleted,
		Subject: draft.Subject,
		Body:    draft.Body,
	}
}

// FailedResult builds the failure outcome carrying msg.
func FailedResult(msg string) LeadResult {
	return LeadResult{
		Status:       LeadStatusFailed,
		ErrorMessage: msg,
	}
}

// ProductMaterial is a named piece of product reference material owned by a user.
type ProductMaterial struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
