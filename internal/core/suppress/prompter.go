package suppress

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

// StaticPrompter answers every prompt the same way.
type StaticPrompter struct {
	Answer bool
}

func (s StaticPrompter) Confirm(context.Context, model.DataType, string) bool {
	return s.Answer
}

// LogPrompter records each prompt as a warning before answering.
type LogPrompter struct {
	Logger *slog.Logger
	Answer bool
}

func (l LogPrompter) Confirm(ctx context.Context, dt model.DataType, msg string) bool {
	l.Logger.WarnContext(ctx, msg, "data_type", dt.Label(), "suppress", l.Answer)
	return l.Answer
}
