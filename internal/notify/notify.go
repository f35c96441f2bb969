// Package notify 通过 Redis Pub/Sub 向公司频道推送事件，WebSocket 层订阅同一频道转发给前端。
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 事件类型。
const (
	TypePipelineMoved    = "pipeline.moved"
	TypeScoringCompleted = "scoring.completed"
	TypeScoringFailed    = "scoring.failed"
)

// Message 是推送给前端的统一消息格式，字段名与前端解析保持一致。
type Message struct {
	Type          string `json:"type"`
	ApplicantID   uint   `json:"applicant_id"`
	FromStage     string `json:"from_stage,omitempty"`
	ToStage       string `json:"to_stage,omitempty"`
	Status        string `json:"status,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Publisher delivers a message to every subscriber of a company.
type Publisher interface {
	Publish(ctx context.Context, companyID uint, msg Message) error
}

// Channel returns the pub/sub channel of a company.
func Channel(companyID uint) string {
	return fmt.Sprintf("company_notify:%d", companyID)
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes JSON encoded messages.
type RedisPublisher struct {
	client redisPublisher
}

func NewRedisPublisher(client redisPublisher) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, companyID uint, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := Channel(companyID)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

// Nop discards messages. Used when redis is not wired (tests, CLI).
type Nop struct{}

func (Nop) Publish(context.Context, uint, Message) error { return nil }
