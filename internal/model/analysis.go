package model

import "time"

// WebsiteAnalysis is the structured summary of a lead's website used as
// generation input.
type WebsiteAnalysis struct {
	URL               string   `json:"url"`
	Title             string   `json:"title,omitempty"`
	CompanyName       string   `json:"company_name,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	Summary           string   `json:"summary"`
	Products          []string `json:"products,omitempty"`
	ValuePropositions []string `json:"value_propositions,omitempty"`
}

// EmailDraft is a generated outreach email.
type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// BatchProgress is a point-in-time snapshot of one batch run.
type BatchProgress struct {
	BatchID    string     `json:"batch_id"`
	UserID     string     `json:"user_id"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Done       bool       `json:"done"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Remaining returns how many leads of the batch have not settled yet.
func (p BatchProgress) Remaining() int {
	if r := p.Total - p.Processed; r > 0 {
		return r
	}
	return 0
}
