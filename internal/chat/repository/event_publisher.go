package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"social_network_service/internal/chat/domain"
	"social_network_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// EventsKafka 發布到 kafka topic
	EventsKafka = "kafka"
	// EventsRedis 發布到 redis channel
	EventsRedis = "redis"
	// EventsNone 不發布
	EventsNone = "none"
)

// EventPublisher 聊天事件對外發布，失敗不影響訊息寫入
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.ChatEvent) error
}

// MessageWriter kafka.Writer 用到的部分
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher 以 chatKey 當 message key，同一個聊天室會落在同一個 partition
func NewKafkaPublisher(writer MessageWriter) EventPublisher {
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, evt domain.ChatEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.ChatKey),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", evt.Type, err)
	}
	return nil
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client  *redis.Client
	channel string
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client, channel string) *RedisPubSub {
	return &RedisPubSub{
		client:  client,
		channel: channel,
	}
}

// Publish 將 event 序列化後，發布到 channel
func (r *RedisPubSub) Publish(ctx context.Context, evt domain.ChatEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Subscribe 訂閱 channel，收到事件後呼叫 handler，ctx 結束時關閉訂閱
func (r *RedisPubSub) Subscribe(ctx context.Context, handler func(evt domain.ChatEvent)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	// 等訂閱確認，避免 Publish 早於訂閱
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var evt domain.ChatEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					logger.Log.Error("unmarshal chat event", zap.Error(err))
					continue
				}
				handler(evt)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", r.channel))
				return
			}
		}
	}()
	return nil
}

type nopPublisher struct{}

// NewNopPublisher events 設為 none 時使用
func NewNopPublisher() EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, domain.ChatEvent) error { return nil }
