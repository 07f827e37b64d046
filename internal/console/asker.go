package console

import (
	"context"

	"github.com/fyrsmithlabs/portfoliod/internal/supervisor"
)

// Asker sends one turn to the assistant. The HTTP client in portfolioctl
// and the in-process supervisor both satisfy it.
type Asker interface {
	Ask(ctx context.Context, message string, prior *supervisor.Slots) (*supervisor.Response, error)
}

// Local runs turns against an in-process supervisor.
type Local struct {
	Supervisor *supervisor.Supervisor
}

// Ask implements Asker.
func (l Local) Ask(ctx context.Context, message string, prior *supervisor.Slots) (*supervisor.Response, error) {
	return l.Supervisor.HandleRequest(ctx, supervisor.Request{Text: message, PriorSlots: prior})
}
