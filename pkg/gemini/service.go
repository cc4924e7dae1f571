// Package gemini is a thin REST client for the Gemini generate/embed APIs.
// Every call goes through the shared rate limiter and a bounded retry loop,
// so a pool of extraction workers cannot blow the shared quota.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"design-assistant-backend/pkg/ratelimit"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// EmbeddingDim is the fixed output dimensionality used on both the
	// document and the query side. The two must match or cosine distance is
	// meaningless.
	EmbeddingDim = 1536

	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// APIError is a structured upstream failure. Transience is decided from the
// HTTP status and the API status string, not by substring-matching error text.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error (%d %s): %s", e.StatusCode, e.Status, e.Message)
}

// IsTransient reports whether the call should be retried with backoff.
func (e *APIError) IsTransient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// Blob is binary content inlined into a request part.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"` // base64-encoded by encoding/json
}

// Part is one piece of a content turn.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

func TextPart(text string) Part { return Part{Text: text} }

func BlobPart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: data}}
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type GenerateRequest struct {
	Contents          []Content `json:"contents"`
	Tools             []Tool    `json:"tools,omitempty"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

type Candidate struct {
	Content Content `json:"content"`
}

type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var out string
	for _, part := range r.Candidates[0].Content.Parts {
		out += part.Text
	}
	return out
}

// FunctionCalls returns the tool calls requested by the first candidate.
func (r *GenerateResponse) FunctionCalls() []FunctionCall {
	if len(r.Candidates) == 0 {
		return nil
	}
	var calls []FunctionCall
	for _, part := range r.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}

// Content returns the first candidate's content turn, for appending to a
// running conversation.
func (r *GenerateResponse) Content() Content {
	if len(r.Candidates) == 0 {
		return Content{Role: "model"}
	}
	return r.Candidates[0].Content
}

// Service is the shared Gemini client.
type Service struct {
	apiKey         string
	model          string
	embeddingModel string
	baseURL        string
	limiter        *ratelimit.Limiter
	httpClient     *http.Client

	maxRetries     int
	initialBackoff time.Duration
	waitTimeout    time.Duration
	sleep          func(time.Duration)
}

type Option func(*Service)

// WithBaseURL points the client at a different endpoint (tests).
func WithBaseURL(url string) Option {
	return func(s *Service) { s.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.initialBackoff = initialBackoff
	}
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Service) { s.sleep = sleep }
}

func NewService(apiKey, model, embeddingModel string, limiter *ratelimit.Limiter, waitTimeout time.Duration, opts ...Option) *Service {
	s := &Service{
		apiKey:         apiKey,
		model:          model,
		embeddingModel: embeddingModel,
		baseURL:        defaultBaseURL,
		limiter:        limiter,
		httpClient:     &http.Client{Timeout: 120 * time.Second},
		maxRetries:     5,
		initialBackoff: 5 * time.Second,
		waitTimeout:    waitTimeout,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs one generateContent call with rate limiting and retries.
// The limiter slot is always released before sleeping or returning, so
// capacity is never held across a backoff wait.
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)

	var resp GenerateResponse
	if err := s.callWithRetry(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateText is the common case: a single user turn, text answer back.
func (s *Service) GenerateText(ctx context.Context, parts ...Part) (string, error) {
	resp, err := s.Generate(ctx, &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text returned")
	}
	return text, nil
}

type embedContentRequest struct {
	Model                string  `json:"model"`
	Content              Content `json:"content"`
	TaskType             string  `json:"taskType"`
	OutputDimensionality int     `json:"outputDimensionality"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// EmbedDocuments embeds a batch of chunk texts for indexing.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embed(ctx, texts, taskTypeDocument)
}

// EmbedQuery embeds a search query. Must use the same model, dimensionality
// and normalization convention as the document side.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embed(ctx, []string{text}, taskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vecs[0], nil
}

func (s *Service) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := batchEmbedRequest{Requests: make([]embedContentRequest, 0, len(texts))}
	for _, text := range texts {
		req.Requests = append(req.Requests, embedContentRequest{
			Model:                "models/" + s.embeddingModel,
			Content:              Content{Parts: []Part{{Text: text}}},
			TaskType:             taskType,
			OutputDimensionality: EmbeddingDim,
		})
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", s.baseURL, s.embeddingModel, s.apiKey)

	var resp batchEmbedResponse
	if err := s.callWithRetry(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (s *Service) callWithRetry(ctx context.Context, url string, payload any, out any) error {
	for attempt := 0; ; attempt++ {
		if !s.limiter.WaitForAvailability(s.waitTimeout) {
			return fmt.Errorf("could not acquire API rate limit slot within %s", s.waitTimeout)
		}

		err := s.doCall(ctx, url, payload, out)
		s.limiter.Release()
		if err == nil {
			return nil
		}

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsTransient() || attempt >= s.maxRetries {
			return err
		}

		backoff := time.Duration(float64(s.initialBackoff) * math.Pow(2, float64(attempt)))
		jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)
		s.sleep(backoff + jitter)
	}
}

func (s *Service) doCall(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseAPIError(statusCode int, body []byte) *APIError {
	var wrapper struct {
		Error struct {
			Code    int    `json:"code"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		apiErr.Status = wrapper.Error.Status
		apiErr.Message = wrapper.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}

// Normalize scales v to unit Euclidean length. A zero vector is returned
// unchanged. Applied identically at index and query time so cosine distance
// behaves as expected.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
