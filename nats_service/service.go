package nats_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karthikraju391/codecrush/config"
	"github.com/karthikraju391/codecrush/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var ErrEmptyPair = errors.New("pair id is empty")

type NatsService struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	stream string
	prefix string
	log    *slog.Logger
}

// NewNatsService connects to NATS and makes sure the chat stream exists.
func NewNatsService(ctx context.Context, cfg config.RelayConfig, log *slog.Logger) (*NatsService, error) {
	nc, err := nats.Connect(cfg.NatsURL, nats.Name("codecrush-relay"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, cfg.StreamName)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		log.Info("Stream not found, creating", "stream", cfg.StreamName)
		stream, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        cfg.StreamName,
			Description: "Fans out chat messages per conversation pair",
			Subjects:    []string{cfg.SubjectPrefix + ".*"},
			MaxAge:      cfg.StreamMaxAge,
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream '%s': %w", cfg.StreamName, err)
		}
		log.Info("Stream created", "stream", cfg.StreamName)
	case err != nil:
		nc.Close()
		return nil, fmt.Errorf("failed to look up stream '%s': %w", cfg.StreamName, err)
	default:
		log.Info("Found existing stream", "stream", stream.CachedInfo().Config.Name)
	}

	return &NatsService{
		js:     js,
		nc:     nc,
		stream: cfg.StreamName,
		prefix: cfg.SubjectPrefix,
		log:    log,
	}, nil
}

// Close closes the NATS connection.
func (s *NatsService) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

// PublishMessage sends a stored message to its pair subject.
func (s *NatsService) PublishMessage(ctx context.Context, msg models.Message) error {
	if msg.PairID == "" {
		return ErrEmptyPair
	}
	subject := s.subject(msg.PairID)
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish message to subject '%s': %w", subject, err)
	}
	s.log.Debug("Published message", "subject", subject, "id", msg.ID)
	return nil
}

func (s *NatsService) subject(pairID string) string {
	return fmt.Sprintf("%s.%s", s.prefix, pairID)
}

// SubscribeToPair delivers every message published to the pair from now
// on. The consumer is ephemeral; stop the returned context to release it.
func (s *NatsService) SubscribeToPair(ctx context.Context, pairID string, handler func(models.Message)) (jetstream.ConsumeContext, error) {
	if pairID == "" {
		return nil, ErrEmptyPair
	}
	subject := s.subject(pairID)
	cons, err := s.js.CreateOrUpdateConsumer(ctx, s.stream, jetstream.ConsumerConfig{
		FilterSubject:     subject,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckNonePolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for subject '%s': %w", subject, err)
	}

	consumeCtx, err := cons.Consume(func(jsMsg jetstream.Msg) {
		var msg models.Message
		if err := json.Unmarshal(jsMsg.Data(), &msg); err != nil {
			s.log.Error("Error unmarshaling message", "subject", jsMsg.Subject(), "error", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming from subject '%s': %w", subject, err)
	}
	s.log.Debug("Subscribed", "subject", subject)
	return consumeCtx, nil
}
