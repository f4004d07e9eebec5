package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Apply(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) seqs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Seq)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func start(t *testing.T, sink Sink, dropStale bool) *Dispatcher {
	t.Helper()
	d := NewDispatcher(sink, 8, dropStale, quietLogger())
	go d.Run(context.Background())
	return d
}

func TestDispatcher_AppliesInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := start(t, sink, false)
	ctx := context.Background()

	for i := range 5 {
		if err := d.Publish(ctx, Event{Seq: uint64(i + 1), Kind: Apply}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	d.Close()

	got := sink.seqs()
	if len(got) != 5 || got[0] != 1 || got[4] != 5 {
		t.Fatalf("seqs = %v", got)
	}
}

func TestDispatcher_LastWriterWinsByDefault(t *testing.T) {
	sink := &recordingSink{}
	d := start(t, sink, false)
	ctx := context.Background()

	_ = d.Publish(ctx, Event{Seq: 2, Kind: Apply})
	_ = d.Publish(ctx, Event{Seq: 1, Kind: Apply})
	d.Close()

	if got := sink.seqs(); len(got) != 2 || got[1] != 1 {
		t.Fatalf("stale event should still apply, seqs = %v", got)
	}
}

func TestDispatcher_DropsStaleWhenEnabled(t *testing.T) {
	sink := &recordingSink{}
	d := start(t, sink, true)
	ctx := context.Background()

	_ = d.Publish(ctx, Event{Seq: 2, Kind: Clear})
	_ = d.Publish(ctx, Event{Seq: 1, Kind: Apply})
	_ = d.Publish(ctx, Event{Seq: 2, Kind: Apply})
	d.Close()

	if got := sink.seqs(); len(got) != 2 || got[0] != 2 || got[1] != 2 {
		t.Fatalf("seqs = %v", got)
	}
}

func TestDispatcher_SelectionDoesNotStaleViewUpdates(t *testing.T) {
	sink := &recordingSink{}
	d := start(t, sink, true)
	ctx := context.Background()

	_ = d.Publish(ctx, Event{Seq: 1, Kind: Clear})
	_ = d.Publish(ctx, Event{Seq: 9, Kind: Select, Selection: &Selection{DataType: model.DataTypePhoto, ID: 7}})
	_ = d.Publish(ctx, Event{Seq: 1, Kind: Apply})
	_ = d.Publish(ctx, Event{Seq: 1, Kind: Paging})
	_ = d.Publish(ctx, Event{Seq: 3, Kind: Select})
	d.Close()

	if got := sink.seqs(); len(got) != 5 {
		t.Fatalf("selections must not make view updates stale, seqs = %v", got)
	}
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	d := start(t, &recordingSink{}, false)
	d.Close()
	d.Close()
	if err := d.Publish(context.Background(), Event{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestDispatcher_NextSeqMonotonic(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, 1, false, quietLogger())
	a, b := d.NextSeq(), d.NextSeq()
	if b <= a {
		t.Fatalf("seq not increasing: %d then %d", a, b)
	}
}

func TestSnapshot_ClearThenApply(t *testing.T) {
	s := NewSnapshot()
	s.Apply(Event{Seq: 1, Kind: Apply, Mode: model.DataTypeSegment, Data: &model.DataSet{Segments: []model.Segment{{ID: 1}}}})
	if len(s.View().Segments) != 1 {
		t.Fatalf("segments not applied")
	}

	hz := &model.HighZoomResultSet{Photos: &model.PhotoDataSet{Photos: []model.Photo{{ID: 7}}, Page: 1}}
	s.Apply(Event{Seq: 2, Kind: Clear, ClearSegments: true})
	s.Apply(Event{Seq: 2, Kind: Apply, Mode: model.DataTypePhoto, Data: &model.DataSet{HighZoom: hz}})

	v := s.View()
	if v.Segments != nil {
		t.Fatalf("segments should have been cleared")
	}
	if v.Mode != model.DataTypePhoto || s.PhotoDataSet() == nil || v.Seq != 2 {
		t.Fatalf("view = %+v", v)
	}
}

func TestSnapshot_SelectionInvalidation(t *testing.T) {
	s := NewSnapshot()
	s.Apply(Event{Kind: Select, Selection: &Selection{DataType: model.DataTypePhoto, ID: 7}})

	keep := &model.HighZoomResultSet{Photos: &model.PhotoDataSet{Photos: []model.Photo{{ID: 7}}}}
	s.Apply(Event{Kind: Apply, Data: &model.DataSet{HighZoom: keep}, CheckSelection: true})
	if s.View().Selection == nil {
		t.Fatalf("selection still present in data should be kept")
	}

	drop := &model.HighZoomResultSet{Photos: &model.PhotoDataSet{Photos: []model.Photo{{ID: 8}}}}
	s.Apply(Event{Kind: Apply, Data: &model.DataSet{HighZoom: drop}, CheckSelection: false})
	if s.View().Selection == nil {
		t.Fatalf("selection must only be checked when asked")
	}
	s.Apply(Event{Kind: Apply, Data: &model.DataSet{HighZoom: drop}, CheckSelection: true})
	if s.View().Selection != nil {
		t.Fatalf("selection missing from new data should be cleared")
	}
}

func TestSnapshot_PagingAndSwitch(t *testing.T) {
	s := NewSnapshot()
	s.Apply(Event{Kind: Paging, Paging: PagingState{Previous: true, Next: true}})
	s.Apply(Event{Kind: SwitchButton, SwitchEnabled: true})
	v := s.View()
	if !v.Paging.Previous || !v.Paging.Next || !v.SwitchEnabled {
		t.Fatalf("view = %+v", v)
	}
	s.Apply(Event{Kind: Clear, ClearHighZoom: true})
	if s.View().Paging.Next {
		t.Fatalf("clearing high zoom data resets paging")
	}
}
