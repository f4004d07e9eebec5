// Package searchevents publishes completed searches to Kafka.
package searchevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/coordinator"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/logger"
)

// CellResolution is the h3 resolution used to tag a search with its location.
const CellResolution = 8

type Event struct {
	ID         string         `json:"id"`
	Session    string         `json:"session,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Kind       string         `json:"kind"`
	DataTypes  []string       `json:"data_types"`
	Failed     []string       `json:"failed,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	DurationMS float64        `json:"duration_ms"`
	Cell       string         `json:"h3_cell,omitempty"`
	Lat        float64        `json:"lat"`
	Lon        float64        `json:"lon"`
	TS         time.Time      `json:"ts"`
}

type Config struct {
	Brokers   []string
	Topic     string
	QueueSize int
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
	now     func() time.Time
}

var _ coordinator.Observer = (*Publisher)(nil)

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_5_0_0
	sc.Producer.Return.Errors = true
	sc.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("searchevents: create async producer: %w", err)
	}
	return newWithProducer(prod, cfg, logger), nil
}

func newWithProducer(prod sarama.AsyncProducer, cfg Config, logger *slog.Logger) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	p := &Publisher{
		topic:   cfg.Topic,
		events:  make(chan Event, cfg.QueueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
		now:     time.Now,
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("searchevents: marshal failed", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Value: sarama.ByteEncoder(b),
			}
			if ev.Cell != "" {
				msg.Key = sarama.StringEncoder(ev.Cell)
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("searchevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish queues ev without blocking; a full queue drops the event.
func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Debug("searchevents: queue full, dropping event", "kind", ev.Kind)
	}
}

func (p *Publisher) SearchCompleted(ctx context.Context, s coordinator.Search) {
	p.Publish(p.eventFor(ctx, s))
}

func (p *Publisher) eventFor(ctx context.Context, s coordinator.Search) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Session:    logger.Session(ctx),
		RequestID:  logger.RequestID(ctx),
		Kind:       s.Kind,
		DataTypes:  labels(s.DataTypes),
		Failed:     labels(s.Failed),
		DurationMS: float64(s.Duration) / float64(time.Millisecond),
		TS:         p.now().UTC(),
	}
	if len(s.Counts) > 0 {
		ev.Counts = make(map[string]int, len(s.Counts))
		for dt, n := range s.Counts {
			ev.Counts[dt.Label()] = n
		}
	}
	if len(s.Areas) > 0 {
		b := s.Areas[0].Bound()
		for _, a := range s.Areas[1:] {
			b = b.Union(a.Bound())
		}
		c := b.Center()
		ev.Lat, ev.Lon = c.Lat(), c.Lon()
		if cell, err := h3.LatLngToCell(h3.LatLng{Lat: ev.Lat, Lng: ev.Lon}, CellResolution); err == nil {
			ev.Cell = cell.String()
		}
	}
	return ev
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("searchevents: close producer: %w", err)
	}
	return nil
}

func labels(in []model.DataType) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, dt := range in {
		out = append(out, dt.Label())
	}
	return out
}
