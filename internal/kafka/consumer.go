package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"alert-service/internal/alerts"
	"alert-service/internal/logging"
	"alert-service/internal/models"
)

// submission is the alert payload published by field gateways.
type submission struct {
	RequesterID   string  `json:"requester_id"`
	RequesterName string  `json:"requester_name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Address       string  `json:"address"`
	Priority      string  `json:"priority"`
	Description   string  `json:"description"`
}

// Consumer ingests alert submissions from Kafka and feeds them into the
// same lifecycle path the HTTP API uses.
type Consumer struct {
	reader *kafka.Reader
	svc    *alerts.Service
	logger *logging.Logger
}

func NewConsumer(broker, topic, groupID string, svc *alerts.Service, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, svc: svc, logger: logger}
}

// Start reads messages until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Infof("Kafka consumer stopped")
				return
			}
			c.logger.Errorf("Read message failed: %v", err)
			continue
		}

		var sub submission
		if err := json.Unmarshal(msg.Value, &sub); err != nil {
			c.logger.Errorf("Unmarshal message failed: %v", err)
			continue
		}
		if sub.RequesterID == "" {
			c.logger.Errorf("Invalid message: missing requester_id")
			continue
		}

		alert, err := c.svc.Create(ctx, models.AlertCreate{
			RequesterID:   sub.RequesterID,
			RequesterName: sub.RequesterName,
			Location: models.Location{
				Latitude:  sub.Latitude,
				Longitude: sub.Longitude,
				Address:   sub.Address,
			},
			Priority:    models.AlertPriority(sub.Priority),
			Description: sub.Description,
		})
		if err != nil {
			c.logger.Errorf("Failed to create alert from Kafka message: %v", err)
			continue
		}
		c.logger.Infof("Processed Kafka submission into alert %s", alert.ID)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
