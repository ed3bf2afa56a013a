package webapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Override replaces properties of one named template layer. Only set fields
// are sent.
type Override struct {
	Name                string `json:"name"`
	Text                string `json:"text,omitempty"`
	Color               string `json:"color,omitempty"`
	Stroke              string `json:"stroke,omitempty"`
	BackgroundColor     string `json:"backgroundColor,omitempty"`
	TextBackgroundColor string `json:"textBackgroundColor,omitempty"`
	Path                string `json:"path,omitempty"`
	FillColor           string `json:"fillColor,omitempty"`
}

// TemplateClient renders an image template once.
type TemplateClient struct {
	client     *Client
	endpoint   string
	templateID string
	apiKey     string
}

type renderRequest struct {
	Overrides []Override `json:"overrides"`
}

// RenderResult is the render API response.
type RenderResult struct {
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	DownloadURL    string `json:"download_url"`
	TemplateID     string `json:"template_id"`
	TransactionRef string `json:"transaction_ref"`
}

func NewTemplateClient(client *Client, endpoint, templateID, apiKey string) *TemplateClient {
	return &TemplateClient{client: client, endpoint: endpoint, templateID: templateID, apiKey: apiKey}
}

// Render creates one image from the template and returns the API response.
func (c *TemplateClient) Render(ctx context.Context, overrides []Override) (RenderResult, error) {
	if strings.TrimSpace(c.endpoint) == "" {
		return RenderResult{}, errors.New("template endpoint is not configured")
	}
	if strings.TrimSpace(c.templateID) == "" {
		return RenderResult{}, errors.New("template id is not configured")
	}
	target, err := withQuery(c.endpoint, "template_id", c.templateID)
	if err != nil {
		return RenderResult{}, err
	}
	if overrides == nil {
		overrides = []Override{}
	}

	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"X-API-KEY": c.apiKey}
	}

	var resp RenderResult
	if err := c.client.DoJSON(ctx, Request{
		URL:     target,
		Headers: headers,
		Body:    renderRequest{Overrides: overrides},
	}, &resp); err != nil {
		return RenderResult{}, err
	}
	if strings.EqualFold(resp.Status, "error") {
		return RenderResult{}, fmt.Errorf("render failed: %s", resp.Message)
	}
	if resp.DownloadURL == "" {
		return RenderResult{}, errors.New("render response has no download url")
	}

	return resp, nil
}

func withQuery(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse template endpoint: %w", err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ParseOverrides reads "layer=text" and "layer.field=value" items. Items for
// the same layer are merged into one override, in first-seen order.
func ParseOverrides(raw []string) ([]Override, error) {
	var out []Override
	index := make(map[string]int)
	for _, item := range raw {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("override %q must look like layer=text or layer.field=value", item)
		}
		name, field, hasField := strings.Cut(key, ".")
		if name == "" {
			return nil, fmt.Errorf("override %q has no layer name", item)
		}
		if !hasField {
			field = "text"
		}

		i, seen := index[name]
		if !seen {
			i = len(out)
			index[name] = i
			out = append(out, Override{Name: name})
		}
		if err := out[i].set(field, value); err != nil {
			return nil, fmt.Errorf("override %q: %w", item, err)
		}
	}

	return out, nil
}

func (o *Override) set(field, value string) error {
	switch strings.ToLower(field) {
	case "text":
		o.Text = value
	case "color":
		o.Color = value
	case "stroke":
		o.Stroke = value
	case "backgroundcolor":
		o.BackgroundColor = value
	case "textbackgroundcolor":
		o.TextBackgroundColor = value
	case "path":
		o.Path = value
	case "fillcolor":
		o.FillColor = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}

	return nil
}
