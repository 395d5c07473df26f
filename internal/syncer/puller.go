package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/chartsync/internal/clone"
	"github.com/roach88/chartsync/internal/diagram"
	"github.com/roach88/chartsync/internal/logger"
	"github.com/roach88/chartsync/internal/remote"
)

// PullRemote fetches diagrams from the server.
type PullRemote interface {
	PullDiagram(ctx context.Context, id string, version int) (*remote.Pulled, error)
	PullAll(ctx context.Context) ([]remote.Pulled, error)
}

// Writer replaces a diagram in the local store.
type Writer interface {
	WriteFull(ctx context.Context, d *diagram.Diagram) error
}

// Puller hydrates the local store from the server. Pulled graphs are cloned
// under preserve-root before they are written, so the diagram keeps its id
// and every child gets a fresh one.
type Puller struct {
	store  Writer
	remote PullRemote
	log    *zap.Logger
}

// NewPuller creates a Puller.
func NewPuller(w Writer, r PullRemote, log *zap.Logger) *Puller {
	return &Puller{store: w, remote: r, log: logger.OrNop(log)}
}

// Pull fetches version of diagram id (0 for latest) and writes it locally.
// It returns the written diagram and the server version it came from.
func (p *Puller) Pull(ctx context.Context, id string, version int) (*diagram.Diagram, int, error) {
	pulled, err := p.remote.PullDiagram(ctx, id, version)
	if err != nil {
		return nil, 0, err
	}
	d, err := p.write(ctx, &pulled.Diagram)
	if err != nil {
		return nil, 0, err
	}
	p.log.Info("diagram pulled",
		zap.String("diagram_id", d.ID),
		zap.Int("version", pulled.Version),
		zap.Int("tables", len(d.Tables)))
	return d, pulled.Version, nil
}

// PullAll fetches and writes the latest version of every remote diagram.
// A diagram that fails to clone or write does not stop the others; the
// returned error joins every failure.
func (p *Puller) PullAll(ctx context.Context) ([]string, error) {
	pulled, err := p.remote.PullAll(ctx)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	var errs []error
	for i := range pulled {
		d, err := p.write(ctx, &pulled[i].Diagram)
		if err != nil {
			errs = append(errs, fmt.Errorf("diagram %s: %w", pulled[i].ID, err))
			continue
		}
		ids = append(ids, d.ID)
	}
	p.log.Info("diagrams pulled", zap.Int("written", len(ids)), zap.Int("failed", len(errs)))
	return ids, errors.Join(errs...)
}

func (p *Puller) write(ctx context.Context, src *diagram.Diagram) (*diagram.Diagram, error) {
	res, err := clone.Clone(src, clone.PreserveRoot, clone.WithLogger(p.log))
	if err != nil {
		return nil, err
	}
	if err := p.store.WriteFull(ctx, res.Diagram); err != nil {
		return nil, err
	}
	return res.Diagram, nil
}
