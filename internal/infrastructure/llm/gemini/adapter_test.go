package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"engagement-advisor/internal/application/port/output"
	"engagement-advisor/internal/domain/entity"
	"engagement-advisor/internal/infrastructure/llm"
	"engagement-advisor/internal/infrastructure/logger"
)

type fakeModels struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func newTestAdapter(models generator) *GeminiAdapter {
	nop := logger.NewNop()
	return &GeminiAdapter{models: models, model: "gemini-2.5-flash", transport: llm.NewStatusTransport(nil, nop), logger: nop}
}

func TestConvertMessages(t *testing.T) {
	system, contents := convertMessages([]entity.Message{
		{Role: entity.RoleSystem, Content: "JSON only"},
		{Role: entity.RoleUser, Content: "Analyze"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "c1", Name: "current_time", Arguments: `{"timezone":"UTC"}`}}},
		{Role: entity.RoleTool, ToolCallID: "c1", Name: "current_time", Content: "2025-05-30T14:42:00Z"},
	})

	require.NotNil(t, system)
	assert.Equal(t, "JSON only", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "UTC", contents[1].Parts[0].FunctionCall.Args["timezone"])
	assert.Equal(t, "current_time", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "2025-05-30T14:42:00Z", contents[2].Parts[0].FunctionResponse.Response["output"])
}

func TestConvertMessages_ToolErrorUsesErrorKey(t *testing.T) {
	_, contents := convertMessages([]entity.Message{
		{Role: entity.RoleUser, Content: "Analyze"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "c1", Name: "execute_code", Arguments: `{"code":"x"}`}}},
		{Role: entity.RoleTool, ToolCallID: "c1", Name: "execute_code", Content: "Error: boom", IsError: true},
	})

	require.Len(t, contents, 3)
	resp := contents[2].Parts[0].FunctionResponse.Response
	assert.Equal(t, "Error: boom", resp["error"])
	assert.NotContains(t, resp, "output")
}

func TestConvertSchema(t *testing.T) {
	schema := convertSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{"type": "string", "description": "Go source"},
		},
		"required": []string{"code"},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, genai.TypeString, schema.Properties["code"].Type)
	assert.Equal(t, "Go source", schema.Properties["code"].Description)
	assert.Equal(t, []string{"code"}, schema.Required)
}

func TestChat(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking out loud", Thought: true},
				{FunctionCall: &genai.FunctionCall{Name: "execute_code", Args: map[string]any{"code": "x"}}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 40, CandidatesTokenCount: 8},
	}}

	resp, err := newTestAdapter(fake).Chat(context.Background(), output.ChatRequest{
		Messages:    []entity.Message{{Role: entity.RoleSystem, Content: "s"}, {Role: entity.RoleUser, Content: "u"}},
		Tools:       []entity.ToolDefinition{{Name: "execute_code", Parameters: map[string]interface{}{"type": "object"}}},
		MaxTokens:   1000,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1000), fake.config.MaxOutputTokens)
	assert.Equal(t, float32(0.2), *fake.config.Temperature)
	require.Len(t, fake.config.Tools, 1)
	assert.Len(t, fake.contents, 1)

	assert.Empty(t, resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.Message.ToolCalls[0].ID)
	assert.JSONEq(t, `{"code":"x"}`, resp.Message.ToolCalls[0].Arguments)
	assert.Equal(t, entity.Usage{InputTokens: 40, OutputTokens: 8}, resp.Usage)
}

func TestChat_Errors(t *testing.T) {
	_, err := newTestAdapter(&fakeModels{resp: &genai.GenerateContentResponse{}}).Chat(context.Background(), output.ChatRequest{})
	assert.ErrorIs(t, err, output.ErrModel)

	_, err = newTestAdapter(&fakeModels{err: errors.New("connection reset")}).Chat(context.Background(), output.ChatRequest{})
	assert.ErrorIs(t, err, output.ErrModel)

	_, err = NewGeminiAdapter(context.Background(), Config{Model: "m"})
	assert.ErrorIs(t, err, output.ErrAuthentication)
}
