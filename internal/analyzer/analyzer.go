// Package analyzer turns a lead's website into the structured summary the
// email generator drafts from.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach/internal/model"
	"github.com/sells-group/outreach/pkg/anthropic"
	"github.com/sells-group/outreach/pkg/jina"
)

const (
	defaultModel           = "claude-haiku-4-5-20251001"
	defaultMaxTokens       = 1024
	defaultMaxContentChars = 12000
	fallbackSummaryChars   = 500
)

const systemPrompt = `You analyze company websites for B2B sales outreach.
Given the markdown of a homepage, respond with only a JSON object:
{"company_name": string, "industry": string, "summary": string (2-3 sentences on what the company does and for whom), "products": [string], "value_propositions": [string]}
Use empty strings or empty arrays for anything the page does not state. Do not invent facts.`

// Analyzer fetches a website through the reader and summarizes it with Claude.
type Analyzer struct {
	reader          jina.Client
	ai              anthropic.Client
	model           string
	maxTokens       int64
	maxContentChars int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithModel sets the Claude model used for summaries.
func WithModel(m string) Option {
	return func(a *Analyzer) {
		if m != "" {
			a.model = m
		}
	}
}

// WithMaxTokens caps the summary response length.
func WithMaxTokens(n int64) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithMaxContentChars bounds how much page text is sent to the model.
func WithMaxContentChars(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxContentChars = n
		}
	}
}

// New creates an Analyzer.
func New(reader jina.Client, ai anthropic.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		reader:          reader,
		ai:              ai,
		model:           defaultModel,
		maxTokens:       defaultMaxTokens,
		maxContentChars: defaultMaxContentChars,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type analysisResponse struct {
	CompanyName       string   `json:"company_name"`
	Industry          string   `json:"industry"`
	Summary           string   `json:"summary"`
	Products          []string `json:"products"`
	ValuePropositions []string `json:"value_propositions"`
}

// Analyze reads website and returns its summary. Reader and model API failures
// are returned; a reply that is not usable JSON degrades to a summary built
// from the page itself.
func (a *Analyzer) Analyze(ctx context.Context, website string) (*model.WebsiteAnalysis, error) {
	target, err := NormalizeURL(website)
	if err != nil {
		return nil, err
	}

	page, err := a.reader.Read(ctx, target)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: fetch website")
	}

	content := truncate(page.Data.Content, a.maxContentChars)
	analysis := &model.WebsiteAnalysis{
		URL:   target,
		Title: strings.TrimSpace(page.Data.Title),
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.CachedSystem(systemPrompt),
		Messages: anthropic.UserMessage(fmt.Sprintf(
			"Website: %s\nTitle: %s\n\nHomepage content:\n%s", target, analysis.Title, content)),
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: claude request")
	}
	resp.Usage.LogCost(a.model, "analyze", zap.String("url", target))

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &parsed); err != nil || strings.TrimSpace(parsed.Summary) == "" {
		zap.L().Warn("analyzer: unusable summary, falling back to page text",
			zap.String("url", target), zap.Error(err))
		analysis.CompanyName = analysis.Title
		analysis.Summary = fallbackSummary(analysis.Title, content)
		return analysis, nil
	}

	analysis.CompanyName = strings.TrimSpace(parsed.CompanyName)
	analysis.Industry = strings.TrimSpace(parsed.Industry)
	analysis.Summary = strings.TrimSpace(parsed.Summary)
	analysis.Products = compact(parsed.Products)
	analysis.ValuePropositions = compact(parsed.ValuePropositions)
	return analysis, nil
}

// NormalizeURL turns a user-entered website into an absolute http(s) URL.
// A missing scheme defaults to https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("analyzer: lead has no website")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "analyzer: invalid website %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("analyzer: unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return "", eris.Errorf("analyzer: invalid website host %q", host)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

// fallbackSummary uses the first prose paragraph of the page.
func fallbackSummary(title, content string) string {
	for _, para := range strings.Split(content, "\n\n") {
		p := strings.TrimSpace(para)
		if p == "" || strings.HasPrefix(p, "#") || strings.HasPrefix(p, "![") || strings.HasPrefix(p, "[") {
			continue
		}
		p = strings.Join(strings.Fields(p), " ")
		if title != "" {
			return truncate(title+": "+p, fallbackSummaryChars)
		}
		return truncate(p, fallbackSummaryChars)
	}
	return title
}

func compact(items []string) []string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
