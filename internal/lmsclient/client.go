package lmsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codateam/hackerx-client-sub000/internal/exam"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000/api"

	idempotencyHeader = "Idempotency-Key"
)

var (
	ErrServiceUnavailable = errors.New("exam service unavailable")
	ErrNoProgress         = errors.New("no saved progress")
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     zerolog.Logger
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type questionsEnvelope struct {
	Questions []exam.Question `json:"questions"`
}

type examEnvelope struct {
	Exam *exam.Exam `json:"exam"`
}

func New(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) GetExam(ctx context.Context, examID string) (exam.Exam, error) {
	if strings.TrimSpace(examID) == "" {
		return exam.Exam{}, errors.New("exam id is required")
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/exams/"+url.PathEscape(examID), nil, &raw, nil); err != nil {
		return exam.Exam{}, err
	}

	// Some deployments wrap the document as {"exam": {...}}.
	var wrapped examEnvelope
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Exam != nil {
		return *wrapped.Exam, nil
	}
	var payload exam.Exam
	if err := json.Unmarshal(raw, &payload); err != nil {
		return exam.Exam{}, err
	}
	return payload, nil
}

func (c *Client) GetQuestions(ctx context.Context, examID string) ([]exam.Question, error) {
	if strings.TrimSpace(examID) == "" {
		return nil, errors.New("exam id is required")
	}

	query := url.Values{}
	query.Set("exam", examID)

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/questions?"+query.Encode(), nil, &raw, nil); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope questionsEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, err
		}
		return envelope.Questions, nil
	}

	var questions []exam.Question
	if err := json.Unmarshal(trimmed, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// GetProgress returns the saved attempt for examID, or ErrNoProgress when
// the backend has none.
func (c *Client) GetProgress(ctx context.Context, examID string) (exam.Progress, error) {
	if strings.TrimSpace(examID) == "" {
		return exam.Progress{}, errors.New("exam id is required")
	}

	var payload exam.Progress
	err := c.doJSON(ctx, http.MethodGet, "/answers/exam/"+url.PathEscape(examID), nil, &payload, nil)
	if IsStatus(err, http.StatusNotFound) {
		return exam.Progress{}, ErrNoProgress
	}
	if err != nil {
		return exam.Progress{}, err
	}
	return payload, nil
}

func (c *Client) SaveProgress(ctx context.Context, submission exam.Submission) error {
	return c.doJSON(ctx, http.MethodPost, "/answers/progress", submission, nil, nil)
}

// Submit posts the final answer set. idempotencyKey is sent as a header so a
// backend that honours it can drop a replayed submit.
func (c *Client) Submit(ctx context.Context, submission exam.Submission, idempotencyKey string) (exam.Result, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[idempotencyHeader] = idempotencyKey
	}

	var result exam.Result
	if err := c.doJSON(ctx, http.MethodPost, "/answers/submit", submission, &result, headers); err != nil {
		return exam.Result{}, err
	}
	return result, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any, headers map[string]string) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", response.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
			apiErr.Message = strings.TrimSpace(payload.Message)
			if apiErr.Message == "" {
				apiErr.Message = strings.TrimSpace(payload.Error)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
