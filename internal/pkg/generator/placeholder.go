package generator

import (
	"context"
	"fmt"
	"net/url"
)

// Placeholder 未配置生成服务时返回演示内容
type Placeholder struct{}

func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

func (p *Placeholder) Generate(ctx context.Context, contentType, prompt string) (*Result, error) {
	var content string
	switch contentType {
	case "blog":
		content = fmt.Sprintf("# %s\n\nThis is demo blog content. Configure a generation API key to produce real articles.\n\n## Introduction\n\nA short introduction about %q.\n\n## Conclusion\n\nThanks for reading!", prompt, prompt)
	case "social":
		content = fmt.Sprintf("%s ✨ #demo #content", prompt)
	case "email":
		content = fmt.Sprintf("Subject: %s\n\nHi there,\n\nThis is a demo email about %q.\n\nBest regards", prompt, prompt)
	case "image":
		content = "https://placehold.co/1024x1024?text=" + url.QueryEscape(prompt)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	return &Result{Content: content, IsPlaceholder: true}, nil
}
