package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionEvent 세션 수명주기 이벤트
type SessionEvent struct {
	Type      string      `json:"type"` // "session_created", "session_updated", "session_filled", "session_removed"
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventRelay Redis Pub/Sub 기반 세션 이벤트 릴레이.
// 어떤 인스턴스가 발행하든 모든 인스턴스의 로컬 WebSocket 허브가 수신한다.
type EventRelay struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
	channel    string

	cancelSub context.CancelFunc
}

// NewEventRelay 세션 이벤트 릴레이 생성
func NewEventRelay(client *redis.Client, logger *zap.Logger) *EventRelay {
	return &EventRelay{
		client:     client,
		logger:     logger,
		instanceID: uuid.New().String(),
		channel:    "sessions:events",
	}
}

// Publish 세션 이벤트 발행
func (r *EventRelay) Publish(eventType string, payload interface{}) {
	event := SessionEvent{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to marshal session event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.Error("Failed to publish session event",
			zap.String("type", eventType),
			zap.Error(err))
	}
}

// Start 이벤트 수신 시작 (handler는 수신 고루틴에서 호출됨)
func (r *EventRelay) Start(ctx context.Context, handler func(event SessionEvent)) error {
	subCtx, cancel := context.WithCancel(ctx)
	r.cancelSub = cancel

	pubsub := r.client.Subscribe(subCtx, r.channel)

	// 구독 확인
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	r.logger.Info("Session event relay started",
		zap.String("instance_id", r.instanceID),
		zap.String("channel", r.channel))

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Error("Failed to unmarshal session event", zap.Error(err))
					continue
				}

				handler(event)

			case <-subCtx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop 이벤트 수신 중지
func (r *EventRelay) Stop() {
	if r.cancelSub != nil {
		r.cancelSub()
	}
}
