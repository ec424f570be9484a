// Package emailgen drafts personalized outreach emails from a website analysis.
package emailgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach/internal/model"
	"github.com/sells-group/outreach/internal/resilience"
	"github.com/sells-group/outreach/pkg/anthropic"
)

const (
	defaultModel       = "claude-sonnet-4-5-20250929"
	defaultMaxTokens   = 1024
	maxSubjectRunes    = 120
	defaultTemperature = 0.7
)

const systemPrompt = `You write short, specific B2B cold outreach emails.
Rules:
- Open with one concrete observation about the recipient's company taken from the analysis.
- Connect it to one of the sender's products when product context is given; otherwise describe a general benefit.
- 80 to 150 words, plain text, no markdown, no placeholders like [Name].
- Greet the recipient by first name when known, otherwise "Hi there".
- End with a single low-friction question.
Respond with only a JSON object: {"subject": string, "body": string}`

// Generator drafts emails with Claude behind a circuit breaker.
type Generator struct {
	ai          anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	breaker     *resilience.Breaker
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the drafting model.
func WithModel(m string) Option {
	return func(g *Generator) {
		if m != "" {
			g.model = m
		}
	}
}

// WithMaxTokens caps the draft length.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithBreaker routes model calls through b. A nil breaker disables it.
func WithBreaker(b *resilience.Breaker) Option {
	return func(g *Generator) {
		g.breaker = b
	}
}

// New creates a Generator.
func New(ai anthropic.Client, opts ...Option) *Generator {
	g := &Generator{
		ai:          ai,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type draftResponse struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Generate drafts an email to the named recipient at the analyzed company.
// An empty subject or body is an error.
func (g *Generator) Generate(ctx context.Context, analysis *model.WebsiteAnalysis, name, email, productContext string) (*model.EmailDraft, error) {
	if analysis == nil {
		return nil, eris.New("emailgen: missing website analysis")
	}

	temp := g.temperature
	req := anthropic.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      anthropic.CachedSystem(systemPrompt),
		Messages:    anthropic.UserMessage(buildPrompt(analysis, RecipientName(name, email), productContext)),
		Temperature: &temp,
	}

	resp, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.ai.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrap(err, "emailgen: claude request")
	}
	resp.Usage.LogCost(g.model, "generate", zap.String("url", analysis.URL))

	var draft draftResponse
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &draft); err != nil {
		return nil, eris.Wrap(err, "emailgen: parse draft JSON")
	}

	subject := strings.Join(strings.Fields(draft.Subject), " ")
	body := strings.TrimSpace(draft.Body)
	if subject == "" || body == "" {
		return nil, eris.New("emailgen: model returned an empty subject or body")
	}
	if r := []rune(subject); len(r) > maxSubjectRunes {
		subject = strings.TrimSpace(string(r[:maxSubjectRunes]))
	}
	return &model.EmailDraft{Subject: subject, Body: body}, nil
}

func buildPrompt(a *model.WebsiteAnalysis, recipient, productContext string) string {
	var b strings.Builder
	company := a.CompanyName
	if company == "" {
		company = a.Title
	}

	b.WriteString("Recipient company analysis\n")
	fmt.Fprintf(&b, "Website: %s\n", a.URL)
	if company != "" {
		fmt.Fprintf(&b, "Company: %s\n", company)
	}
	if a.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", a.Industry)
	}
	fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	if len(a.Products) > 0 {
		fmt.Fprintf(&b, "Their products: %s\n", strings.Join(a.Products, "; "))
	}
	if len(a.ValuePropositions) > 0 {
		fmt.Fprintf(&b, "Their value propositions: %s\n", strings.Join(a.ValuePropositions, "; "))
	}

	b.WriteString("\nRecipient\n")
	if recipient != "" {
		fmt.Fprintf(&b, "Name: %s\n", recipient)
	} else {
		b.WriteString("Name: unknown\n")
	}

	b.WriteString("\nSender product context\n")
	if productContext != "" {
		b.WriteString(productContext)
	} else {
		b.WriteString("none provided")
	}
	b.WriteString("\n")
	return b.String()
}

// roleMailboxes are local parts that never name a person.
var roleMailboxes = map[string]bool{
	"info": true, "sales": true, "contact": true, "hello": true, "support": true,
	"admin": true, "office": true, "team": true, "marketing": true, "noreply": true,
}

// RecipientName returns a display name for the greeting. name wins when set;
// otherwise a personal-looking email local part ("jane.doe") is used. The
// result is title-cased only when the input was all one case.
func RecipientName(name, email string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		local, _, ok := strings.Cut(strings.TrimSpace(email), "@")
		if !ok || local == "" || roleMailboxes[strings.ToLower(local)] {
			return ""
		}
		name = strings.Join(strings.FieldsFunc(local, func(r rune) bool {
			return r == '.' || r == '_' || r == '-' || r == '+' || (r >= '0' && r <= '9')
		}), " ")
	}
	if name == strings.ToLower(name) || name == strings.ToUpper(name) {
		// Casers keep state, so each call gets its own.
		return cases.Title(language.English).String(strings.ToLower(name))
	}
	return name
}
