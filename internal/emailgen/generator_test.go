package emailgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach/internal/model"
	"github.com/sells-group/outreach/internal/resilience"
	"github.com/sells-group/outreach/pkg/anthropic"
	anthropicmocks "github.com/sells-group/outreach/pkg/anthropic/mocks"
)

func acmeAnalysis() *model.WebsiteAnalysis {
	return &model.WebsiteAnalysis{
		URL:               "https://acme.com",
		Title:             "Acme Robotics",
		CompanyName:       "Acme Robotics",
		Industry:          "Robotics",
		Summary:           "Acme builds warehouse picking robots.",
		Products:          []string{"PickBot"},
		ValuePropositions: []string{"Faster picking"},
	}
}

func TestGenerate_Success(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		prompt := req.Messages[0].Content
		return req.Model == defaultModel &&
			req.Temperature != nil &&
			strings.Contains(prompt, "Company: Acme Robotics") &&
			strings.Contains(prompt, "Name: Jane Doe") &&
			strings.Contains(prompt, "Pricing, Deck")
	})).Return(anthropicmocks.TextResponse(defaultModel,
		`Here you go: {"subject":"  PickBot   and your  ops ","body":"Hi Jane,\n\nQuick question.\n"}`), nil)

	g := New(ai)
	draft, err := g.Generate(context.Background(), acmeAnalysis(), "jane doe", "jane@acme.com", "Pricing, Deck")
	require.NoError(t, err)
	assert.Equal(t, "PickBot and your ops", draft.Subject)
	assert.Equal(t, "Hi Jane,\n\nQuick question.", draft.Body)
}

func TestGenerate_NoProductContext(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "none provided") &&
			strings.Contains(req.Messages[0].Content, "Name: unknown")
	})).Return(anthropicmocks.TextResponse(defaultModel, `{"subject":"Hi","body":"Hello there"}`), nil)

	_, err := New(ai).Generate(context.Background(), acmeAnalysis(), "", "info@acme.com", "")
	require.NoError(t, err)
}

func TestGenerate_NilAnalysis(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)

	_, err := New(ai).Generate(context.Background(), nil, "Jane", "", "")
	require.Error(t, err)
	ai.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestGenerate_APIError(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("429 rate_limit_error"))

	_, err := New(ai).Generate(context.Background(), acmeAnalysis(), "Jane", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_error")
}

func TestGenerate_EmptyDraft(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "empty body", reply: `{"subject":"Hi","body":"  "}`},
		{name: "empty subject", reply: `{"subject":"","body":"text"}`},
		{name: "not json", reply: `I cannot write this email.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := anthropicmocks.NewMockClient(t)
			ai.On("CreateMessage", mock.Anything, mock.Anything).
				Return(anthropicmocks.TextResponse(defaultModel, tt.reply), nil)

			_, err := New(ai).Generate(context.Background(), acmeAnalysis(), "Jane", "", "")
			assert.Error(t, err)
		})
	}
}

func TestGenerate_LongSubjectTruncated(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(anthropicmocks.TextResponse(defaultModel,
			`{"subject":"`+strings.Repeat("ü", 200)+`","body":"b"}`), nil)

	draft, err := New(ai).Generate(context.Background(), acmeAnalysis(), "Jane", "", "")
	require.NoError(t, err)
	assert.Equal(t, maxSubjectRunes, len([]rune(draft.Subject)))
}

func TestGenerate_BreakerOpensAfterFailures(t *testing.T) {
	ai := anthropicmocks.NewMockClient(t)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("overloaded_error")).Twice()

	g := New(ai, WithBreaker(resilience.NewBreaker("anthropic", 2, time.Minute)), WithModel("m"), WithMaxTokens(200))
	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), acmeAnalysis(), "Jane", "", "")
		require.Error(t, err)
	}

	_, err := g.Generate(context.Background(), acmeAnalysis(), "Jane", "", "")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	ai.AssertNumberOfCalls(t, "CreateMessage", 2)
}

func TestRecipientName(t *testing.T) {
	tests := []struct {
		name, email, want string
	}{
		{"jane doe", "", "Jane Doe"},
		{"JANE DOE", "", "Jane Doe"},
		{"  Jane   McDonald ", "", "Jane McDonald"},
		{"", "jane.doe@acme.com", "Jane Doe"},
		{"", "j_smith42@acme.com", "J Smith"},
		{"", "info@acme.com", ""},
		{"", "Sales@acme.com", ""},
		{"", "not-an-email", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name+"|"+tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, RecipientName(tt.name, tt.email))
		})
	}
}
