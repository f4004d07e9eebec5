// Package suppress gates user-facing fetch failure prompts per data type.
package suppress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

type State int

const (
	Ask State = iota
	Suppressed
)

func (s State) String() string {
	if s == Suppressed {
		return "SUPPRESSED"
	}
	return "ASK"
}

// FlagStore persists one suppression flag per data type.
type FlagStore interface {
	SuppressFlag(ctx context.Context, dt model.DataType) (bool, error)
	SetSuppressFlag(ctx context.Context, dt model.DataType, suppress bool) error
}

// Prompter asks the user a synchronous yes/no question. A true answer means
// future failures of dt should be suppressed.
type Prompter interface {
	Confirm(ctx context.Context, dt model.DataType, msg string) bool
}

type Policy struct {
	store  FlagStore
	logger *slog.Logger
}

func NewPolicy(store FlagStore, logger *slog.Logger) *Policy {
	return &Policy{store: store, logger: logger}
}

// Promptable reports whether dt carries a suppression flag. Segment failures
// are only logged.
func Promptable(dt model.DataType) bool {
	return dt == model.DataTypePhoto || dt == model.DataTypeDetection || dt == model.DataTypeCluster
}

func (p *Policy) State(ctx context.Context, dt model.DataType) State {
	suppressed, err := p.store.SuppressFlag(ctx, dt)
	if err != nil {
		p.logger.Warn("read suppression flag failed", "data_type", dt.Label(), "err", err)
		return Ask
	}
	if suppressed {
		return Suppressed
	}
	return Ask
}

func (p *Policy) ShouldNotify(ctx context.Context, dt model.DataType) bool {
	if !Promptable(dt) {
		return false
	}
	return p.State(ctx, dt) == Ask
}

func (p *Policy) RecordUserChoice(ctx context.Context, dt model.DataType, suppress bool) error {
	if !Promptable(dt) {
		return fmt.Errorf("data type %s has no suppression flag", dt)
	}
	if err := p.store.SetSuppressFlag(ctx, dt, suppress); err != nil {
		return fmt.Errorf("store suppression flag for %s: %w", dt.Label(), err)
	}
	return nil
}

// Reset puts every flag back to Ask.
func (p *Policy) Reset(ctx context.Context) error {
	for _, dt := range model.DataTypes {
		if !Promptable(dt) {
			continue
		}
		if err := p.store.SetSuppressFlag(ctx, dt, false); err != nil {
			return fmt.Errorf("reset suppression flag for %s: %w", dt.Label(), err)
		}
	}
	return nil
}

func Message(dt model.DataType) string {
	return fmt.Sprintf("Loading %s data failed. Suppress further %s errors?", dt.Label(), dt.Label())
}
