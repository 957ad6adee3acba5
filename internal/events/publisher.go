// Package events публикует события экономики после фиксации мутаций.
// Публикация best-effort: состояние аккаунта уже записано, событие — уведомление
// для внешних потребителей (аналитика, уведомления, аудит).
package events

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// Publisher отправляет тело body с ключом маршрутизации routingKey.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// LogPublisher пишет события в лог. Используется, когда брокер не настроен
// или недоступен при старте.
type LogPublisher struct {
	logger *log.Logger
}

// NewLogPublisher создаёт публикатор в лог. nil — стандартный логгер logrus.
func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.logger.WithFields(log.Fields{
		"routing_key": routingKey,
		"payload":     string(payload),
	}).Debug("Событие экономики")
	return nil
}

func (p *LogPublisher) Close() {}
