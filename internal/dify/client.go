package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.dify.ai"

// Keys holds one app key per Dify application
type Keys struct {
	Explore string // answers node questions
	Options string // proposes starting options for a topic word
	Check   string // flags forbidden topic words
	Expand  string // expands a topic word into angles, styles and difficulty
}

// Complete reports whether every application has a key
func (k Keys) Complete() bool {
	return k.Explore != "" && k.Options != "" && k.Check != "" && k.Expand != ""
}

// Config configures a Client
type Config struct {
	BaseURL string
	User    string
	Keys    Keys
	Timeout time.Duration
}

// Client calls Dify chat-messages applications in blocking mode
type Client struct {
	baseURL string
	user    string
	keys    Keys
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a new Client
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if !cfg.Keys.Complete() {
		return nil, fmt.Errorf("dify app keys not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	user := cfg.User
	if user == "" {
		user = "wayfind-user"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		user:    user,
		keys:    cfg.Keys,
		http:    &http.Client{Timeout: timeout},
		breaker: newBreaker("dify", logger),
		logger:  logger,
	}, nil
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip once a few calls went through
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// AskAngle answers a node question asked from angle in the given mode
func (c *Client) AskAngle(ctx context.Context, angle, mode, input string) (string, error) {
	inputs := map[string]string{"angle": angle, "mode": mode}
	answer, err := c.call(ctx, c.keys.Explore, inputs, input)
	if err != nil {
		return "", fmt.Errorf("ask angle: %w", err)
	}
	return PlainText(answer), nil
}

// CheckForbidden reports whether the topic word is rejected by moderation
func (c *Client) CheckForbidden(ctx context.Context, word string) (bool, error) {
	answer, err := c.call(ctx, c.keys.Check, nil, word)
	if err != nil {
		return false, fmt.Errorf("check word: %w", err)
	}
	return strings.TrimSpace(answer) == verdictForbidden, nil
}

// Expand asks for the angle pool, styles and difficulty of a topic word
func (c *Client) Expand(ctx context.Context, word string) (TopicProfile, error) {
	answer, err := c.call(ctx, c.keys.Expand, nil, word)
	if err != nil {
		return TopicProfile{}, fmt.Errorf("expand word: %w", err)
	}
	profile, err := ParseTopicProfile(answer)
	if err != nil {
		c.logger.Warn("topic profile unreadable, using defaults",
			zap.String("word", word), zap.Error(err))
	}
	return profile, nil
}

// StartOptions asks for the starting options offered for a topic word
func (c *Client) StartOptions(ctx context.Context, word string) ([]string, error) {
	answer, err := c.call(ctx, c.keys.Options, nil, word)
	if err != nil {
		return nil, fmt.Errorf("start options: %w", err)
	}
	options := ParseOptions(answer)
	if len(options) == 0 {
		return nil, fmt.Errorf("start options: empty response")
	}
	return options, nil
}

type chatRequest struct {
	Inputs         map[string]string `json:"inputs"`
	Query          string            `json:"query"`
	ResponseMode   string            `json:"response_mode"`
	ConversationID string            `json:"conversation_id"`
	User           string            `json:"user"`
}

type chatResponse struct {
	Answer  string `json:"answer"`
	Message string `json:"message"`
	Data    *struct {
		Answer string `json:"answer"`
	} `json:"data,omitempty"`
}

func (c *Client) call(ctx context.Context, key string, inputs map[string]string, query string) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, key, inputs, query)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) post(ctx context.Context, key string, inputs map[string]string, query string) (string, error) {
	if inputs == nil {
		inputs = map[string]string{}
	}
	reqBody := chatRequest{
		Inputs:       inputs,
		Query:        query,
		ResponseMode: "blocking",
		User:         c.user,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat-messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	switch {
	case apiResp.Answer != "":
		return apiResp.Answer, nil
	case apiResp.Message != "":
		return apiResp.Message, nil
	case apiResp.Data != nil && apiResp.Data.Answer != "":
		return apiResp.Data.Answer, nil
	}
	// Unknown shape: hand back the raw body rather than nothing
	return string(body), nil
}
