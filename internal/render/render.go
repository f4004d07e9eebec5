// Package render delivers view updates to a single consumer that owns the
// displayed state.
package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
)

type Kind int

const (
	// Clear removes displayed data of one kind.
	Clear Kind = iota
	// Apply replaces displayed data with Data.
	Apply
	// Paging toggles the previous/next page controls.
	Paging
	// SwitchButton toggles the manual data type switch control.
	SwitchButton
	// Select marks a photo, detection or cluster as selected.
	Select
)

func (k Kind) String() string {
	switch k {
	case Clear:
		return "clear"
	case Apply:
		return "apply"
	case Paging:
		return "paging"
	case SwitchButton:
		return "switch_button"
	case Select:
		return "select"
	default:
		return "unknown"
	}
}

type PagingState struct {
	Previous bool `json:"previous"`
	Next     bool `json:"next"`
}

type Selection struct {
	DataType model.DataType `json:"dataType"`
	ID       int64          `json:"id"`
}

type Event struct {
	Seq  uint64
	Kind Kind
	// Mode is the effective data type the event belongs to.
	Mode model.DataType

	ClearSegments bool
	ClearHighZoom bool

	Data           *model.DataSet
	CheckSelection bool

	Paging        PagingState
	SwitchEnabled bool

	Selection *Selection
}

// Sink applies events. It is only ever called from the dispatcher goroutine.
type Sink interface {
	Apply(ev Event)
}

var ErrClosed = errors.New("render dispatcher closed")

type Dispatcher struct {
	sink      Sink
	events    chan Event
	seq       atomic.Uint64
	dropStale bool
	logger    *slog.Logger

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

func NewDispatcher(sink Sink, buffer int, dropStale bool, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		sink:      sink,
		events:    make(chan Event, buffer),
		dropStale: dropStale,
		logger:    logger,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// NextSeq allocates the sequence number for one view update request.
func (d *Dispatcher) NextSeq() uint64 {
	return d.seq.Add(1)
}

// Publish queues ev, blocking while the buffer is full.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	select {
	case <-d.quit:
		return ErrClosed
	default:
	}
	select {
	case d.events <- ev:
		return nil
	case <-d.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes events until Close or ctx is done. Events queued before Close
// are still applied.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	var newest uint64
	for {
		select {
		case ev := <-d.events:
			newest = d.apply(ev, newest)
		case <-d.quit:
			for {
				select {
				case ev := <-d.events:
					newest = d.apply(ev, newest)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// competes reports whether the event carries view data that a newer view
// update supersedes. Selections are user input and never go stale.
func (k Kind) competes() bool {
	return k != Select
}

func (d *Dispatcher) apply(ev Event, newest uint64) uint64 {
	if !ev.Kind.competes() {
		d.sink.Apply(ev)
		return newest
	}
	if ev.Seq < newest && d.dropStale {
		observability.IncRenderDropped()
		d.logger.Debug("dropping stale render event", "seq", ev.Seq, "newest", newest, "kind", ev.Kind.String())
		return newest
	}
	d.sink.Apply(ev)
	return max(newest, ev.Seq)
}

// Close stops accepting events and waits for the consumer to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.quit) })
	<-d.done
}
