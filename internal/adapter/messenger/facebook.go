package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultGraphURL is the Graph API base used for Send API calls.
const DefaultGraphURL = "https://graph.facebook.com/v18.0"

// FacebookClient implements port.Messenger with the Messenger Send API.
type FacebookClient struct {
	httpClient  *http.Client
	graphURL    string
	pageToken   string
	rateLimiter *rate.Limiter
}

// NewFacebookClient creates a Send API client limited to perSecond calls.
func NewFacebookClient(graphURL, pageToken string, perSecond float64) *FacebookClient {
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	if perSecond <= 0 {
		perSecond = 10
	}
	return &FacebookClient{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		graphURL:    graphURL,
		pageToken:   pageToken,
		rateLimiter: rate.NewLimiter(rate.Limit(perSecond), 5),
	}
}

// SendText sends a plain text reply.
func (c *FacebookClient) SendText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	})
}

// SendImage sends an image attachment by URL.
func (c *FacebookClient) SendImage(ctx context.Context, recipientID, imageURL string) error {
	return c.send(ctx, map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": "image",
				"payload": map[string]interface{}{
					"url":         imageURL,
					"is_reusable": true,
				},
			},
		},
	})
}

func (c *FacebookClient) send(ctx context.Context, payload interface{}) error {
	if c.pageToken == "" {
		return fmt.Errorf("messenger: page access token not configured")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("messenger rate limit: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := c.graphURL + "/me/messages?access_token=" + url.QueryEscape(c.pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messenger send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messenger send (%d): %s", resp.StatusCode, string(msg))
	}
	return nil
}
