// Package sink publishes detection results to Redis subscribers.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/signify/internal/inference"
)

// Channel is the Redis pub/sub channel results are published on.
const Channel = "signify:detections"

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Timeout bounds a single publish.
	Timeout time.Duration
}

// Message is the JSON payload of one published result.
type Message struct {
	SessionID  string    `json:"session_id"`
	Label      string    `json:"label"`
	ClassIndex int       `json:"class_index"`
	Confidence float64   `json:"confidence"`
	Confident  bool      `json:"confident"`
	At         time.Time `json:"at"`
}

// NewMessage builds a message for r, marking it confident against threshold.
func NewMessage(sessionID string, r inference.Result, threshold float64) Message {
	return Message{
		SessionID:  sessionID,
		Label:      r.Label,
		ClassIndex: r.ClassIndex,
		Confidence: r.Confidence,
		Confident:  r.Confident(threshold),
		At:         r.At,
	}
}

// Redis publishes results on Channel.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewRedis connects to Redis and pings it once. A failed ping is logged,
// not returned, so the service still starts while Redis is down.
func NewRedis(opts Options, log logrus.FieldLogger) *Redis {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}

	log.Infof("Connecting to Redis at %s...", opts.Addr)

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Error("Failed to connect to Redis")
	} else {
		log.Info("Successfully connected to Redis")
	}

	return &Redis{client: client, timeout: opts.Timeout, log: log}
}

// Publish sends msg on Channel.
func (r *Redis) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel, err)
	}
	return nil
}

// Handle publishes a result, logging instead of returning failures. It fits
// session.ResultFunc once the threshold is bound.
func (r *Redis) Handle(threshold float64) func(sessionID string, res inference.Result) {
	return func(sessionID string, res inference.Result) {
		if err := r.Publish(context.Background(), NewMessage(sessionID, res, threshold)); err != nil {
			r.log.WithError(err).Warn("result not published")
		}
	}
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
