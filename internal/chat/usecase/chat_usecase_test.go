package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"design-assistant-backend/pkg/chroma"
	"design-assistant-backend/pkg/gemini"
)

type scriptedGenerator struct {
	responses []*gemini.GenerateResponse
	requests  []*gemini.GenerateRequest
	err       error
}

func (g *scriptedGenerator) Generate(_ context.Context, req *gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if len(g.responses) == 0 {
		return textResponse("fallback"), nil
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

func textResponse(text string) *gemini.GenerateResponse {
	return &gemini.GenerateResponse{Candidates: []gemini.Candidate{{
		Content: gemini.Content{Role: "model", Parts: []gemini.Part{gemini.TextPart(text)}},
	}}}
}

func toolCallResponse(name string, args map[string]any) *gemini.GenerateResponse {
	return &gemini.GenerateResponse{Candidates: []gemini.Candidate{{
		Content: gemini.Content{Role: "model", Parts: []gemini.Part{
			{FunctionCall: &gemini.FunctionCall{Name: name, Args: args}},
		}},
	}}}
}

type fakeTools struct {
	context    string
	contextErr error
	results    []chroma.SearchResult
	queries    []string
}

func (f *fakeTools) GetTaskContext(string) (string, error) {
	return f.context, f.contextErr
}

func (f *fakeTools) SearchTaskDocs(_ context.Context, _, query string, k int) ([]chroma.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, nil
}

type recordedEvent struct {
	name string
	data interface{}
}

func collectEvents(events *[]recordedEvent) EventSink {
	return func(name string, data interface{}) error {
		*events = append(*events, recordedEvent{name: name, data: data})
		return nil
	}
}

func eventNames(events []recordedEvent) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.name
	}
	return names
}

func TestStreamChatPlainAnswer(t *testing.T) {
	llm := &scriptedGenerator{responses: []*gemini.GenerateResponse{textResponse("the wall is 2.4m")}}
	uc := NewChatUsecase(llm, &fakeTools{})

	var events []recordedEvent
	err := uc.StreamChat(context.Background(), "task-1", "how tall is the wall?", collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "message", "done"}, eventNames(events))
	assert.Equal(t, map[string]string{"text": "the wall is 2.4m"}, events[1].data)
}

func TestStreamChatToolLoopCollectsCitations(t *testing.T) {
	llm := &scriptedGenerator{responses: []*gemini.GenerateResponse{
		toolCallResponse("search_task_docs", map[string]any{"query": "wall height", "k": float64(3)}),
		textResponse("per the survey it is 2.4m"),
	}}
	tools := &fakeTools{results: []chroma.SearchResult{{Filename: "survey.pdf", Snippet: "wall height 2.4m"}}}
	uc := NewChatUsecase(llm, tools)

	var events []recordedEvent
	err := uc.StreamChat(context.Background(), "task-1", "how tall?", collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "message", "citations", "done"}, eventNames(events))
	assert.Equal(t, []string{"wall height"}, tools.queries)

	citations, ok := events[2].data.([]chroma.SearchResult)
	require.True(t, ok)
	require.Len(t, citations, 1)
	assert.Equal(t, "survey.pdf", citations[0].Filename)

	// Second model call carries the tool response turn.
	require.Len(t, llm.requests, 2)
	last := llm.requests[1].Contents
	require.GreaterOrEqual(t, len(last), 3)
	assert.NotNil(t, last[len(last)-1].Parts[0].FunctionResponse)
}

func TestStreamChatTurnBudget(t *testing.T) {
	// The model asks for a tool on every turn and never answers.
	var responses []*gemini.GenerateResponse
	for i := 0; i < maxToolTurns+2; i++ {
		responses = append(responses, toolCallResponse("get_task_context", nil))
	}
	llm := &scriptedGenerator{responses: responses}
	uc := NewChatUsecase(llm, &fakeTools{context: `{"item_name":"Kitchen"}`})

	var events []recordedEvent
	err := uc.StreamChat(context.Background(), "task-1", "loop forever", collectEvents(&events))
	require.NoError(t, err)

	assert.Len(t, llm.requests, maxToolTurns)
	assert.Equal(t, "done", events[len(events)-1].name)
}

func TestStreamChatGenerationFailure(t *testing.T) {
	llm := &scriptedGenerator{err: errors.New("quota exhausted")}
	uc := NewChatUsecase(llm, &fakeTools{})

	var events []recordedEvent
	err := uc.StreamChat(context.Background(), "task-1", "hi", collectEvents(&events))
	require.Error(t, err)
	assert.Equal(t, []string{"start", "error"}, eventNames(events))
}

func TestRunToolUnknownTool(t *testing.T) {
	uc := NewChatUsecase(&scriptedGenerator{}, &fakeTools{})
	var citations []chroma.SearchResult

	result := uc.runTool(context.Background(), "task-1", gemini.FunctionCall{Name: "nope"}, &citations)
	msg, ok := result["error"].(string)
	require.True(t, ok)
	assert.Contains(t, msg, "unknown tool")
}
