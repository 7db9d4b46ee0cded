package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/creditflow_server/internal/model/dto"
)

const (
	ChannelUserEvents = "user_events"
)

// 消息类型
const (
	TypeCreditsUpdated = "credits_updated"
	TypeContentUpdated = "content_updated"
)

// Message 推送给用户的事件
type Message struct {
	Type             string `json:"type"`
	UserID           int64  `json:"user_id"`
	CreditsRemaining *int   `json:"credits_remaining,omitempty"`
	Tier             string `json:"tier,omitempty"`
	ContentID        int64  `json:"content_id,omitempty"`
	Result           string `json:"result,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 发布消息
func (p *Publisher) Publish(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return p.client.Publish(ctx, ChannelUserEvents, data).Err()
}

// PublishBalance 发布余额变更
func (p *Publisher) PublishBalance(ctx context.Context, userID int64, balance *dto.BalanceInfo) error {
	credits := balance.CreditsRemaining
	return p.Publish(ctx, &Message{
		Type:             TypeCreditsUpdated,
		UserID:           userID,
		CreditsRemaining: &credits,
		Tier:             balance.Tier,
	})
}

// PublishContent 发布内容结果变更（图片转存完成）
func (p *Publisher) PublishContent(ctx context.Context, userID, contentID int64, result string) error {
	return p.Publish(ctx, &Message{
		Type:      TypeContentUpdated,
		UserID:    userID,
		ContentID: contentID,
		Result:    result,
	})
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅用户事件，阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*Message)) error {
	pubsub := s.client.Subscribe(ctx, ChannelUserEvents)
	defer pubsub.Close()

	// 等待订阅确认，避免之后发布的消息丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue // 忽略解析错误
			}

			handler(&m)
		}
	}
}
