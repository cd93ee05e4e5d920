// Package announce delivers outbound announcements to the social poster.
// Delivery is fire-and-forget: sinks report errors but never retry.
package announce

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Sink publishes a single announcement.
type Sink interface {
	Announce(ctx context.Context, text string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, text string) error

// Announce calls f.
func (f SinkFunc) Announce(ctx context.Context, text string) error {
	return f(ctx, text)
}

// LogSink writes announcements to the process log. Useful for local runs.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a LogSink. A nil logger uses the standard logger.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

// Announce implements Sink.
func (s *LogSink) Announce(_ context.Context, text string) error {
	s.logger.Printf("[Announce] %s", text)
	return nil
}

// queue is the slice of the duelboard client RedisSink needs.
type queue interface {
	PushAnnouncement(ctx context.Context, text string) error
}

// RedisSink appends announcements to the Redis queue drained by the external poster.
type RedisSink struct {
	queue queue
}

// NewRedisSink creates a RedisSink backed by a duelboard client.
func NewRedisSink(q queue) *RedisSink {
	return &RedisSink{queue: q}
}

// Announce implements Sink.
func (s *RedisSink) Announce(ctx context.Context, text string) error {
	if err := s.queue.PushAnnouncement(ctx, text); err != nil {
		return fmt.Errorf("redis sink: %w", err)
	}
	return nil
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

// Announce implements Sink. Every sink is attempted even if an earlier one fails.
func (m MultiSink) Announce(ctx context.Context, text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Announce(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
