package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var systemPrompts = map[string]string{
	"blog":   "You are a professional blog writer. Write a well structured blog post with a title, an introduction, several sections and a conclusion.",
	"social": "You are a social media copywriter. Write one short, engaging post with a few relevant hashtags.",
	"email":  "You are a professional email writer. Write a clear email with a subject line, greeting, body and sign-off.",
}

// OpenAIClient OpenAI 兼容接口客户端
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	textModel  string
	imageModel string
	httpClient *http.Client
}

func NewOpenAIClient(baseURL, apiKey, textModel, imageModel string, timeout time.Duration) *OpenAIClient {
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		textModel:  textModel,
		imageModel: imageModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate 调用文本或图片接口
func (c *OpenAIClient) Generate(ctx context.Context, contentType, prompt string) (*Result, error) {
	if contentType == "image" {
		return c.generateImage(ctx, prompt)
	}

	system, ok := systemPrompts[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	var resp chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResult
	}
	return &Result{Content: resp.Choices[0].Message.Content}, nil
}

func (c *OpenAIClient) generateImage(ctx context.Context, prompt string) (*Result, error) {
	var resp imageResponse
	err := c.post(ctx, "/images/generations", imageRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   "1024x1024",
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, ErrEmptyResult
	}
	return &Result{Content: resp.Data[0].URL}, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("provider api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("provider api error (%d): %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
