package searchevents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/coordinator"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/logger"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSearch() coordinator.Search {
	return coordinator.Search{
		Kind:      "high_zoom",
		Areas:     []model.BoundingBox{model.NewBoundingBox(59.34, 59.32, 18.08, 18.06)},
		DataTypes: []model.DataType{model.DataTypePhoto, model.DataTypeCluster},
		Failed:    []model.DataType{model.DataTypeCluster},
		Counts:    map[model.DataType]int{model.DataTypePhoto: 12},
		Duration:  250 * time.Millisecond,
	}
}

func TestEventFor_TagsCellAndContext(t *testing.T) {
	p := &Publisher{now: func() time.Time { return time.Unix(0, 0) }}
	ctx := logger.WithSession(logger.WithRequestID(context.Background(), "r1"), "s1")

	ev := p.eventFor(ctx, sampleSearch())
	if ev.ID == "" || ev.Session != "s1" || ev.RequestID != "r1" {
		t.Fatalf("identity fields = %+v", ev)
	}
	if ev.Cell == "" {
		t.Fatalf("expected h3 cell for viewport centre")
	}
	if ev.DurationMS != 250 {
		t.Fatalf("duration = %v", ev.DurationMS)
	}
	if ev.Counts["photo"] != 12 || len(ev.Failed) != 1 || ev.Failed[0] != "cluster" {
		t.Fatalf("counts/failed = %+v %+v", ev.Counts, ev.Failed)
	}
	if ev.Lat < 59.32 || ev.Lat > 59.34 {
		t.Fatalf("lat = %v", ev.Lat)
	}

	other := p.eventFor(ctx, sampleSearch())
	if other.ID == ev.ID {
		t.Fatalf("event ids must be unique")
	}
	if other.Cell != ev.Cell {
		t.Fatalf("same area should map to the same cell")
	}
}

func TestEventFor_NoAreasNoCell(t *testing.T) {
	p := &Publisher{now: time.Now}
	ev := p.eventFor(context.Background(), coordinator.Search{Kind: "segments"})
	if ev.Cell != "" || ev.DataTypes != nil {
		t.Fatalf("event = %+v", ev)
	}
}

func TestPublisher_SendsKeyedJSON(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, nil)
	var got []byte
	var key []byte
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		var err error
		got, err = m.Value.Encode()
		if err != nil {
			return err
		}
		key, err = m.Key.Encode()
		return err
	})

	p := newWithProducer(prod, Config{Topic: "search-events", QueueSize: 4}, quietLogger())
	p.SearchCompleted(context.Background(), sampleSearch())
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(got, &ev); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if ev.Kind != "high_zoom" || string(key) != ev.Cell {
		t.Fatalf("event = %+v key = %s", ev, key)
	}
}
