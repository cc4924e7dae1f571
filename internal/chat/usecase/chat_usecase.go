package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"design-assistant-backend/pkg/chroma"
	"design-assistant-backend/pkg/gemini"
)

// maxToolTurns bounds the tool loop so a confused model cannot spin forever.
const maxToolTurns = 8

const defaultSearchK = 5

const systemPrompt = "You are a design assistant answering questions about one work item. " +
	"You have two tools: get_task_context returns the item's metadata and column values; " +
	"search_task_docs searches the item's ingested documents (emails, PDFs, drawings, parameter tables). " +
	"Ground every factual answer in tool results and mention which document it came from. " +
	"If the documents do not contain the answer, say so."

// Generator is the slice of the Gemini client the chat loop consumes.
type Generator interface {
	Generate(ctx context.Context, req *gemini.GenerateRequest) (*gemini.GenerateResponse, error)
}

// TaskTools are the capabilities exposed to the model.
type TaskTools interface {
	GetTaskContext(externalTaskKey string) (string, error)
	SearchTaskDocs(ctx context.Context, externalTaskKey, query string, k int) ([]chroma.SearchResult, error)
}

// EventSink receives server-sent events as the answer is produced.
type EventSink func(event string, data interface{}) error

// ChatUsecase runs the retrieval-augmented chat loop for one task.
type ChatUsecase struct {
	llm   Generator
	tools TaskTools
}

func NewChatUsecase(llm Generator, tools TaskTools) *ChatUsecase {
	return &ChatUsecase{llm: llm, tools: tools}
}

var toolDeclarations = []gemini.Tool{{
	FunctionDeclarations: []gemini.FunctionDeclaration{
		{
			Name:        "get_task_context",
			Description: "Returns the work item's metadata: name, column values, document counts and CSV parameter tables.",
		},
		{
			Name:        "search_task_docs",
			Description: "Searches the work item's ingested documents and returns the most relevant text snippets with their source filenames.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "What to search for"},
					"k":     map[string]any{"type": "integer", "description": "How many snippets to return"},
				},
				"required": []string{"query"},
			},
		},
	},
}}

// StreamChat answers one user message, emitting start / message / citations /
// done events. Tool calls loop up to a fixed turn budget.
func (uc *ChatUsecase) StreamChat(ctx context.Context, externalTaskKey, message string, emit EventSink) error {
	if err := emit("start", map[string]string{}); err != nil {
		return err
	}

	contents := []gemini.Content{
		{Role: "user", Parts: []gemini.Part{gemini.TextPart(message)}},
	}
	var citations []chroma.SearchResult

	for turn := 0; turn < maxToolTurns; turn++ {
		resp, err := uc.llm.Generate(ctx, &gemini.GenerateRequest{
			Contents:          contents,
			Tools:             toolDeclarations,
			SystemInstruction: &gemini.Content{Parts: []gemini.Part{gemini.TextPart(systemPrompt)}},
		})
		if err != nil {
			emit("error", map[string]string{"error": "the assistant is unavailable right now"})
			return fmt.Errorf("chat generation failed: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			if err := emit("message", map[string]string{"text": resp.Text()}); err != nil {
				return err
			}
			if len(citations) > 0 {
				if err := emit("citations", citations); err != nil {
					return err
				}
			}
			return emit("done", map[string]string{})
		}

		contents = append(contents, resp.Content())
		var responses []gemini.Part
		for _, call := range calls {
			result := uc.runTool(ctx, externalTaskKey, call, &citations)
			responses = append(responses, gemini.Part{
				FunctionResponse: &gemini.FunctionResponse{
					Name:     call.Name,
					Response: result,
				},
			})
		}
		contents = append(contents, gemini.Content{Role: "user", Parts: responses})
	}

	// Turn budget exhausted: close the stream gracefully instead of looping.
	log.Printf("[Chat] Tool loop hit the turn budget for task %s", externalTaskKey)
	if err := emit("message", map[string]string{
		"text": "I couldn't finish answering that within my tool budget. Try a more specific question.",
	}); err != nil {
		return err
	}
	return emit("done", map[string]string{})
}

func (uc *ChatUsecase) runTool(ctx context.Context, externalTaskKey string, call gemini.FunctionCall, citations *[]chroma.SearchResult) map[string]any {
	switch call.Name {
	case "get_task_context":
		context, err := uc.tools.GetTaskContext(externalTaskKey)
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		var decoded any
		if json.Unmarshal([]byte(context), &decoded) == nil {
			return map[string]any{"context": decoded}
		}
		return map[string]any{"context": context}

	case "search_task_docs":
		query, _ := call.Args["query"].(string)
		k := defaultSearchK
		if raw, ok := call.Args["k"].(float64); ok && raw > 0 {
			k = int(raw)
		}
		results, err := uc.tools.SearchTaskDocs(ctx, externalTaskKey, query, k)
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		*citations = append(*citations, results...)
		return map[string]any{"results": results}

	default:
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}
	}
}
