// Package dispatch routes wire lines to their parsers and owns the
// per-message retry and dead-letter policy.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gwngames/persister/internal/config"
	"github.com/gwngames/persister/internal/deadletter"
	"github.com/gwngames/persister/internal/model"
	"github.com/gwngames/persister/internal/parser"
)

// Dispatcher decodes envelopes, routes them by kind and executes the
// parser under a process-wide mutex. The mutex is the deliberate
// concurrency ceiling: ingestion scales to many connections, but commits
// are serialised to side-step cross-table deadlocks in the link topology.
type Dispatcher struct {
	registry parser.Registry
	sink     *deadletter.Sink
	cfg      config.DispatchConfig

	mu  sync.Mutex
	log *zap.Logger
}

// New creates a Dispatcher over the given parser registry and dead-letter
// sink.
func New(registry parser.Registry, sink *deadletter.Sink, cfg config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		sink:     sink,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "dispatcher")),
	}
}

// Dispatch handles one trimmed wire line. Malformed envelopes and unknown
// kinds are warned and discarded without retry; parser failures are
// retried with jittered back-off and spilled to the dead-letter sink when
// the budget is exhausted.
func (d *Dispatcher) Dispatch(ctx context.Context, line []byte) {
	env, err := model.ParseEnvelope(line)
	if err != nil {
		d.log.Warn("rejecting malformed message", zap.Error(err))
		return
	}

	p, ok := d.registry.Lookup(env.Kind())
	if !ok {
		d.log.Warn("no parser for message kind",
			zap.Int("class_id", env.ClassID),
			zap.Int("variant_id", env.VariantID),
			zap.String("id", env.ID))
		return
	}

	err = retryDo(ctx, retryConfig{
		MaxRetries:     d.cfg.MaxRetries,
		Delay:          time.Duration(d.cfg.DelaySecs * float64(time.Second)),
		JitterFraction: 0.2,
		OnRetry: func(attempt int, err error) {
			d.log.Warn("retrying message",
				zap.String("msg_id", env.MsgID()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		},
	}, func(ctx context.Context) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		return p.Parse(ctx, env)
	})
	if err != nil {
		d.log.Error("message exhausted retry budget",
			zap.String("msg_id", env.MsgID()),
			zap.Error(err))
		if rerr := d.sink.Record(env.MsgID(), eris.ToString(err, false)); rerr != nil {
			d.log.Error("dead-letter write failed", zap.Error(rerr))
		}
	}
}
