package market

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	responseFormatJSONObject = "json_object"
)

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// promptSpec describes the expected JSON document to the model. It is sent as
// the system message, serialized.
type promptSpec struct {
	Description    string         `json:"description"`
	Requirements   []string       `json:"requirements"`
	ResponseFormat map[string]any `json:"responseFormat"`
}

func distributionShape(label string) map[string]any {
	return map[string]any{"title": "string", "labels": []string{label}, "data": []int{0}}
}

func systemPrompt() (string, error) {
	spec := promptSpec{
		Description: "Generate comprehensive market analysis data for visualization",
		Requirements: []string{
			"Historic trend data",
			"Market share distribution",
			"User sentiment distribution",
			"Regional distribution",
			"Age group distribution",
			"Price point distribution",
		},
		ResponseFormat: map[string]any{
			"historicTrend": map[string]any{
				"title":    "string",
				"labels":   []string{"month1"},
				"datasets": []map[string]any{{"label": "string", "data": []int{0}}},
			},
			"marketShare": distributionShape("company1"),
			"sentiment": map[string]any{
				"title":  "string",
				"labels": []string{"Positive", "Neutral", "Negative"},
				"data":   []int{0},
			},
			"regional":          distributionShape("region1"),
			"demographics":      distributionShape("age1"),
			"priceDistribution": distributionShape("range1"),
		},
	}

	encoded, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode system prompt: %w", err)
	}
	return string(encoded), nil
}

func buildChatRequest(model string, temperature float64, query string) (*chatCompletionRequest, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	prompt, err := systemPrompt()
	if err != nil {
		return nil, err
	}

	return &chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: roleSystem, Content: prompt},
			{Role: roleUser, Content: "Generate market analysis visualization data for: " + query},
		},
		ResponseFormat: &responseFormat{Type: responseFormatJSONObject},
		Temperature:    &temperature,
	}, nil
}
