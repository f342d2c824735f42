package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://apis.roblox.com/messaging-service"

// OpenCloudClient publishes to Roblox Open Cloud MessagingService.
type OpenCloudClient struct {
	universeID int64
	apiKey     string
	baseURL    string
	http       *http.Client
	log        *zerolog.Logger
}

// NewOpenCloudClient builds a MessagingService client with a bounded
// request timeout.
func NewOpenCloudClient(universeID int64, apiKey, baseURL string, timeout time.Duration, logger *zerolog.Logger) *OpenCloudClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenCloudClient{
		universeID: universeID,
		apiKey:     apiKey,
		baseURL:    baseURL,
		http:       &http.Client{Timeout: timeout},
		log:        logger,
	}
}

type publishRequest struct {
	Message string `json:"message"`
}

// Publish sends message to topic on the configured universe. Provider
// 401/403 maps to ErrUnauthorized, 404 to ErrInvalidUniverse and 5xx to
// ErrUpstream so callers can tell retryable failures from terminal ones.
func (c *OpenCloudClient) Publish(ctx context.Context, topic, message string) error {
	body, err := json.Marshal(publishRequest{Message: message})
	if err != nil {
		return fmt.Errorf("encode publish body: %w", err)
	}

	url := fmt.Sprintf("%s/v1/universes/%d/topics/%s", c.baseURL, c.universeID, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, res.StatusCode)
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: universe %d", ErrInvalidUniverse, c.universeID)
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUpstream, res.StatusCode)
	case res.StatusCode >= 300:
		return fmt.Errorf("publish to %s: unexpected status %d", topic, res.StatusCode)
	}

	c.log.Debug().Str("topic", topic).Msg("published message")
	return nil
}

// Probe publishes a throwaway message to the test topic so credential
// problems surface at startup instead of on the first relay.
func (c *OpenCloudClient) Probe(ctx context.Context) error {
	if err := c.Publish(ctx, TopicTest, "none"); err != nil {
		return fmt.Errorf("credential probe: %w", err)
	}
	return nil
}

var _ Publisher = (*OpenCloudClient)(nil)
