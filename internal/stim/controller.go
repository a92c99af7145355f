package stim

import (
	"context"
	"log/slog"

	"github.com/fishlab/gostim/internal/event"
	"github.com/fishlab/gostim/internal/texture"
)

// Controller is the entry point for external switch events: it normalizes a
// raw request and installs the result as the active stimulus. An invalid
// request fails the switch and leaves the previous stimulus running; it never
// takes the display down.
type Controller struct {
	logger    *slog.Logger
	source    string
	scheduler *Scheduler
	catalog   texture.Catalog
	defaults  Defaults
}

func NewController(logger *slog.Logger, source string, scheduler *Scheduler, catalog texture.Catalog, defaults Defaults) *Controller {
	return &Controller{
		logger:    logger,
		source:    source,
		scheduler: scheduler,
		catalog:   catalog,
		defaults:  defaults,
	}
}

// Switch normalizes req and installs it, returning the new generation. Safe
// under concurrent calls; installs are serialized by the scheduler and the
// latest one wins.
func (c *Controller) Switch(ctx context.Context, req *Request) (uint64, error) {
	spec, err := Normalize(req, c.catalog, c.defaults)
	if err != nil {
		c.logger.Warn("Switch request rejected, keeping active stimulus", slog.Any("error", err))
		event.Send(event.SwitchRejected(event.Text(c.source, "Switch request rejected"), err.Error()))
		return 0, err
	}
	return c.scheduler.Install(ctx, spec)
}

// Blank installs the safe blank stimulus, used at session start and as the
// fail-safe fallback.
func (c *Controller) Blank(ctx context.Context) (uint64, error) {
	return c.scheduler.Install(ctx, Blank(c.catalog))
}
