package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/pauljones0/wanderdeals/internal/models"
)

type Client struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

type categorizationResult struct {
	Items []struct {
		Index    int    `json:"index"`
		Category string `json:"category"`
	} `json:"items"`
}

// NewClient returns nil without an API key; a nil *Client categorizes nothing.
func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1), // Low temperature for deterministic output
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"items": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"index": {Type: genai.TypeInteger, Description: "The index of the deal in the input list."},
							"category": {
								Type:        genai.TypeString,
								Enum:        models.Categories,
								Description: "The single best-fitting travel category.",
							},
						},
						Required: []string{"index", "category"},
					},
				},
			},
			Required: []string{"items"},
		},
	}

	return &Client{client: client, model: modelID, config: config}, nil
}

// Categorize assigns a category to each deal and returns them keyed by the
// deal's index in deals. Unknown categories from the model are dropped.
func (c *Client) Categorize(ctx context.Context, deals []models.Deal) (map[int]string, error) {
	if c == nil || c.client == nil || len(deals) == 0 {
		return nil, nil // Graceful degradation
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(buildPrompt(deals)), c.config)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	return parseCategories(resp.Text(), len(deals))
}

func buildPrompt(deals []models.Deal) string {
	var b strings.Builder
	b.WriteString("Assign each travel deal below to exactly one category from: ")
	b.WriteString(strings.Join(models.Categories, ", "))
	b.WriteString(".\nUse \"other\" only when nothing else fits.\n\n")
	for i, d := range deals {
		desc := d.Description
		if len(desc) > 300 {
			desc = desc[:300]
		}
		fmt.Fprintf(&b, "%d. Title: %q Business: %q (%s) Description: %q\n", i, d.Title, d.BusinessName, d.BusinessType, desc)
	}
	b.WriteString("\nOutput JSON adhering to the schema.")
	return b.String()
}

func parseCategories(raw string, n int) (map[int]string, error) {
	// Clean up potential markdown formatting just in case
	jsonStr := strings.TrimSpace(raw)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")
	if strings.TrimSpace(jsonStr) == "" {
		return nil, fmt.Errorf("no text in gemini response")
	}

	var result categorizationResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}

	out := make(map[int]string, len(result.Items))
	for _, item := range result.Items {
		if item.Index < 0 || item.Index >= n || !slices.Contains(models.Categories, item.Category) {
			continue
		}
		out[item.Index] = item.Category
	}
	return out, nil
}
