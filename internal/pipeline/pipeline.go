package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/alert"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/metrics"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store"
)

// State is the pipeline lifecycle state.
type State string

const (
	StateCold       State = "COLD"        // not started
	StateCatchingUp State = "CATCHING_UP" // replaying blocks between the watermark and the head
	StateLive       State = "LIVE"        // following head notifications
	StateFaulted    State = "FAULTED"     // stopped on a terminal error
)

var pipelineStates = []State{StateCold, StateCatchingUp, StateLive, StateFaulted}

const headBufferSize = 64

type Config struct {
	ChannelBufferSize int
}

// Pipeline drives block numbers from the chain into the single writer:
// catch-up replays every block between the persisted watermark and the
// current head, then head notifications take over. Blocks are always
// enqueued in strictly increasing order with no gaps.
type Pipeline struct {
	cfg     Config
	adapter chain.Adapter
	fetcher *Fetcher
	writer  *Writer
	state   store.StateRepository
	alerter alert.Alerter
	health  *Health
	logger  *slog.Logger

	mu           sync.Mutex
	currentState State
}

func New(cfg Config, adapter chain.Adapter, fetcher *Fetcher, writer *Writer, stateRepo store.StateRepository, alerter alert.Alerter, health *Health, logger *slog.Logger) *Pipeline {
	if cfg.ChannelBufferSize <= 0 {
		cfg.ChannelBufferSize = 16
	}
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	return &Pipeline{
		cfg:          cfg,
		adapter:      adapter,
		fetcher:      fetcher,
		writer:       writer,
		state:        stateRepo,
		alerter:      alerter,
		health:       health,
		logger:       logger.With("component", "pipeline"),
		currentState: StateCold,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentState
}

func (p *Pipeline) Health() *Health { return p.health }

// Run blocks until ctx is done or the pipeline faults. Any returned error
// other than context cancellation means processing stopped on a terminal
// failure and the service should exit.
func (p *Pipeline) Run(ctx context.Context) error {
	p.setState(StateCold)

	anchor, err := p.resolveAnchor(ctx)
	if err != nil {
		p.setState(StateFaulted)
		return fmt.Errorf("resolve start block: %w", err)
	}
	p.logger.Info("starting pipeline", "anchor_block", anchor)

	heads := make(chan chain.BlockHeader, headBufferSize)
	work := make(chan *Work, p.cfg.ChannelBufferSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.writer.Run(gctx, work)
	})

	// The subscription starts before catch-up so heads arriving while we
	// replay are buffered, not lost.
	g.Go(func() error {
		err := p.adapter.SubscribeNewHeads(gctx, heads)
		if err != nil && gctx.Err() == nil {
			p.sendAlert(gctx, alert.Alert{
				Type:    alert.AlertTypeSubscriptionLost,
				Chain:   p.adapter.Chain(),
				Title:   "Head subscription lost",
				Message: err.Error(),
			})
		}
		return err
	})

	g.Go(func() error {
		defer close(work)
		return p.produce(gctx, anchor, heads, work)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		p.setState(StateFaulted)
		p.sendAlert(context.Background(), alert.Alert{
			Type:    alert.AlertTypeFaulted,
			Chain:   p.adapter.Chain(),
			Title:   "Pipeline halted",
			Message: err.Error(),
		})
		return err
	}
	return err
}

// resolveAnchor returns the last fully processed block. A fresh deployment
// without a watermark starts from the current head (historical blocks are out
// of scope).
func (p *Pipeline) resolveAnchor(ctx context.Context) (int64, error) {
	watermark, exists, err := p.state.GetLastProcessedBlock(ctx)
	if err != nil {
		return 0, err
	}
	if exists {
		return watermark, nil
	}

	head, err := p.adapter.HeadBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("read head for fresh start: %w", err)
	}
	return head, nil
}

func (p *Pipeline) produce(ctx context.Context, anchor int64, heads <-chan chain.BlockHeader, work chan<- *Work) error {
	p.setState(StateCatchingUp)
	last := anchor

	// The head is read once at entry; blocks produced while we replay are
	// gap-filled by the live loop. Chasing a moving head here would never
	// terminate under heavy load.
	head, err := p.adapter.HeadBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("read head during catch-up: %w", err)
	}
	for b := last + 1; b <= head; b++ {
		if err := p.enqueue(ctx, b, work); err != nil {
			return err
		}
		last = b
		metrics.CatchupBlocksReplayed.Inc()
	}

	p.setState(StateLive)
	p.logger.Info("pipeline live", "last_enqueued_block", last)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case head, ok := <-heads:
			if !ok {
				return fmt.Errorf("head channel closed")
			}
			metrics.ListenerHeadsReceived.Inc()
			if head.Number <= last {
				metrics.ListenerDuplicateHeads.Inc()
				p.logger.Debug("dropping stale head notification",
					"head_block", head.Number,
					"last_enqueued_block", last,
				)
				continue
			}
			// Fill any gap so block numbers stay contiguous.
			for b := last + 1; b <= head.Number; b++ {
				if err := p.enqueue(ctx, b, work); err != nil {
					return err
				}
				last = b
			}
		}
	}
}

func (p *Pipeline) enqueue(ctx context.Context, blockNumber int64, work chan<- *Work) error {
	w, err := p.fetcher.FetchBlock(ctx, blockNumber)
	if err != nil {
		return err
	}
	select {
	case work <- w:
		metrics.PipelineChannelDepth.Set(float64(len(work)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) setState(state State) {
	p.mu.Lock()
	prev := p.currentState
	p.currentState = state
	p.mu.Unlock()

	if p.health != nil {
		p.health.SetState(state)
	}
	for _, s := range pipelineStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		metrics.PipelineState.WithLabelValues(string(s)).Set(v)
	}
	if prev != state {
		p.logger.Info("pipeline state changed", "from", prev, "to", state)
	}
}

func (p *Pipeline) sendAlert(ctx context.Context, a alert.Alert) {
	if err := p.alerter.Send(ctx, a); err != nil {
		p.logger.Warn("alert dispatch failed", "type", a.Type, "error", err)
	}
}
