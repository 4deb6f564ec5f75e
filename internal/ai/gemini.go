package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient classifies articles with the Gemini API.
type GeminiClient struct {
	client        *genai.Client
	model         string
	contentBudget int
}

func NewGeminiClient(ctx context.Context, apiKey, model string, contentBudget int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, contentBudget: contentBudget}, nil
}

func (c *GeminiClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Analyze(ctx context.Context, title, content string, focusSymbols []string) (*Analysis, error) {
	model := c.client.GenerativeModel(c.model)
	prompt := buildPrompt(title, truncateContent(content, c.contentBudget), focusSymbols)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	response := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	return parseAnalysis(response)
}
