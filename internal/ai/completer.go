// Package ai 封装对托管大模型的调用：生成职位描述与简历评分。
// 未配置凭据时返回内置的模拟结果。
package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("ai: no content in response")

// ChatRequest is a single system+user exchange.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	JSON        bool
}

// Completer 是对话补全接口，OpenAI 与 Gemini 各有一个实现。
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// cleanJSON strips markdown fences and surrounding prose some models add around a JSON object.
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		content = content[start : end+1]
	}
	return content
}
