package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/highscore-api/internal/config"
	"github.com/highscore-api/internal/domain"
)

// ScoreMessage is the wire format for asynchronous score submissions.
// Each message carries the raw API key and is authenticated and
// validated exactly like the HTTP path.
type ScoreMessage struct {
	APIKey     string                 `json:"api_key"`
	PlayerName string                 `json:"player_name"`
	Score      int64                  `json:"score"`
	Metadata   map[string]interface{} `json:"game_metadata,omitempty"`
}

// KeyResolver maps a raw API key to its game.
type KeyResolver interface {
	Resolve(ctx context.Context, rawKey string) (*domain.Game, error)
}

// ScoreSubmitter validates and appends score events.
type ScoreSubmitter interface {
	SubmitScore(ctx context.Context, game *domain.Game, sub domain.ScoreSubmission) (*domain.ScoreEvent, error)
}

// Consumer consumes score messages from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	resolver      KeyResolver
	submitter     ScoreSubmitter
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, resolver KeyResolver, submitter ScoreSubmitter, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		resolver:      resolver,
		submitter:     submitter,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	// Wait until consumer is ready
	<-c.ready
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition. Messages are
// gathered into small batches to amortize wakeups, but each one is
// resolved and appended individually so one bad submission never blocks
// the rest.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]ScoreMessage, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, msg := range batch {
			h.consumer.process(ctx, msg)
		}
		h.consumer.logger.Debug("processed batch", "batch_size", len(batch))

		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			// Process remaining batch before exit
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			var scoreMsg ScoreMessage
			if err := json.Unmarshal(message.Value, &scoreMsg); err != nil {
				h.consumer.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			if scoreMsg.APIKey == "" || scoreMsg.PlayerName == "" {
				h.consumer.logger.Warn("incomplete score message",
					"player_name", scoreMsg.PlayerName,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, scoreMsg)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// process authenticates and appends one submission. Failures are logged
// and dropped; the message was already marked, and retry is a producer
// concern.
func (c *Consumer) process(ctx context.Context, msg ScoreMessage) {
	game, err := c.resolver.Resolve(ctx, msg.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.logger.Warn("score message with invalid API key", "player_name", msg.PlayerName)
		} else {
			c.logger.Error("failed to resolve API key", "error", err)
		}
		return
	}

	_, err = c.submitter.SubmitScore(ctx, game, domain.ScoreSubmission{
		PlayerName: msg.PlayerName,
		Score:      msg.Score,
		Metadata:   msg.Metadata,
	})
	if err != nil {
		if domain.IsValidationError(err) {
			c.logger.Warn("score message rejected", "game_id", game.ID, "error", err)
		} else {
			c.logger.Error("failed to append score event", "game_id", game.ID, "error", err)
		}
	}
}
