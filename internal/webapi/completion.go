package webapi

import (
	"context"
	"errors"
	"strings"
)

// CompletionClient sends one prompt to a text completion endpoint.
type CompletionClient struct {
	client   *Client
	endpoint string
	apiKey   string
}

type completionRequest struct {
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func NewCompletionClient(client *Client, endpoint, apiKey string) *CompletionClient {
	return &CompletionClient{client: client, endpoint: endpoint, apiKey: apiKey}
}

// Complete returns the text of the first choice.
func (c *CompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.endpoint) == "" {
		return "", errors.New("completion endpoint is not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is empty")
	}

	var resp completionResponse
	if err := c.client.DoJSON(ctx, Request{
		URL:     c.endpoint,
		Headers: bearer(c.apiKey),
		Body:    completionRequest{Prompt: prompt},
	}, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}

	return resp.Choices[0].Text, nil
}
