package generator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/creditflow_server/config"
)

var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrEmptyResult     = errors.New("provider returned empty result")
)

// Result 生成结果
type Result struct {
	Content       string
	IsPlaceholder bool
}

// Provider 内容生成服务
type Provider interface {
	Generate(ctx context.Context, contentType, prompt string) (*Result, error)
}

// NewFromConfig 按配置创建生成服务。未配置 API Key 时使用占位实现。
func NewFromConfig(cfg config.GenerationConfig, log *zap.Logger) Provider {
	if cfg.Provider == "placeholder" || cfg.APIKey == "" {
		return NewPlaceholder()
	}

	client := NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.TextModel, cfg.ImageModel,
		time.Duration(cfg.TimeoutSeconds)*time.Second)

	return NewBreaker(client, BreakerSettings{
		Name:             "openai",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         time.Duration(cfg.Breaker.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MinRequests:      cfg.Breaker.MinRequests,
	}, log)
}
