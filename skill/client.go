package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/types"
)

// Client posts activities to a skill's endpoint on behalf of the host bot.
type Client interface {
	PostActivity(ctx context.Context, fromBotID, toBotID, endpoint, serviceURL, conversationID string, activity *types.Activity) (*types.InvokeResponse, error)
}

// ClientConfig configures the HTTP skill client.
type ClientConfig struct {
	// Timeout bounds each request to the skill.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RequestsPerSecond throttles outbound skill traffic. Zero disables
	// throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	// Burst is the throttle's burst allowance.
	Burst int `yaml:"burst" json:"burst"`
	// RetryCount is how many times a failed request is retried.
	RetryCount int `yaml:"retry_count" json:"retry_count"`
	// SigningSecret signs the bearer token sent to the skill.
	SigningSecret string `yaml:"signing_secret" json:"signing_secret"`
}

// DefaultClientConfig returns production-leaning client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 20,
		Burst:             10,
		RetryCount:        2,
	}
}

// HTTPClient posts activities to skills over HTTP with signed bearer
// tokens and client-side throttling.
type HTTPClient struct {
	http      *resty.Client
	limiter   *rate.Limiter
	secret    []byte
	logger    *zap.Logger
	collector *metrics.Collector
}

// NewHTTPClient creates a skill client from config.
func NewHTTPClient(cfg ClientConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json")

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPClient{
		http:      httpClient,
		limiter:   limiter,
		secret:    []byte(cfg.SigningSecret),
		logger:    logger,
		collector: metrics.Default(),
	}
}

func (c *HTTPClient) PostActivity(ctx context.Context, fromBotID, toBotID, endpoint, serviceURL, conversationID string, activity *types.Activity) (*types.InvokeResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrSkillRequest, "rate limit wait aborted").WithCause(err)
		}
	}

	token, err := c.signToken(fromBotID, toBotID)
	if err != nil {
		return nil, err
	}

	forwarded := activity.Clone()
	forwarded.ServiceURL = serviceURL
	if forwarded.Conversation == nil {
		forwarded.Conversation = &types.ConversationAccount{}
	}
	forwarded.Conversation.ID = conversationID

	url := fmt.Sprintf("%s/v3/conversations/%s/activities", endpoint, conversationID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(forwarded).
		Post(url)
	if err != nil {
		c.collector.RecordSkillRequest(toBotID, "error")
		return nil, types.NewErrorf(types.ErrSkillRequest, "post to skill %q failed", toBotID).WithCause(err).WithRetryable(true)
	}

	c.logger.Debug("posted activity to skill",
		zap.String("skill", toBotID),
		zap.String("conversation", conversationID),
		zap.Int("status", resp.StatusCode()))
	c.collector.RecordSkillRequest(toBotID, fmt.Sprintf("%d", resp.StatusCode()))

	result := &types.InvokeResponse{Status: resp.StatusCode()}
	if body := resp.Body(); len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			result.Body = parsed
		}
	}
	return result, nil
}

// signToken mints a short-lived HS256 bearer token scoped to the target
// skill.
func (c *HTTPClient) signToken(fromBotID, toBotID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": fromBotID,
		"aud": toBotID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", types.NewError(types.ErrSkillRequest, "sign skill request token").WithCause(err)
	}
	return token, nil
}
