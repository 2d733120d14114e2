package ingest

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ChannelCapacity bounds the queue between the block analyzer and the
// balance analyzer, providing implicit backpressure against a balance
// flush that is slower than the incoming update rate.
const ChannelCapacity = 1000

// UpdateStream is the consumer-side view of the upstream subscription: a
// sequence of updates terminated by io.EOF (a 300s-inactivity timeout
// surfaces as any other error here, left to the caller to classify).
type UpdateStream interface {
	Recv(ctx context.Context) (BlockchainUpdate, error)
}

type taggedUpdate struct {
	update   BlockchainUpdate
	blockUID int64
}

// Supervisor fans each upstream update out to the block analyzer (inline,
// so its append is guaranteed to commit before the update is ever visible
// to the balance analyzer) and then to the balance analyzer over a bounded
// channel, matching the ordering guarantee that the block record for U
// commits before the balance analyzer observes U.
type Supervisor struct {
	blockAnalyzer   *BlockAnalyzer
	balanceAnalyzer *BalanceAnalyzer
}

func NewSupervisor(blockAnalyzer *BlockAnalyzer, balanceAnalyzer *BalanceAnalyzer) *Supervisor {
	return &Supervisor{blockAnalyzer: blockAnalyzer, balanceAnalyzer: balanceAnalyzer}
}

// Run drains stream until it ends (io.EOF) or the context is cancelled,
// driving the block analyzer on the calling goroutine and the balance
// analyzer on a dedicated one. Either analyzer's first error cancels the
// group and is returned; per the writer pipeline's error policy this is
// fatal and the caller should exit the process so recovery runs on
// restart.
func (s *Supervisor) Run(ctx context.Context, stream UpdateStream) error {
	group, ctx := errgroup.WithContext(ctx)
	ch := make(chan taggedUpdate, ChannelCapacity)

	group.Go(func() error {
		defer close(ch)
		for {
			update, err := stream.Recv(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return errors.Wrap(err, "ingest: supervisor: recv")
			}

			blockUID, err := s.blockAnalyzer.Process(ctx, update)
			if err != nil {
				return err
			}

			select {
			case ch <- taggedUpdate{update: update, blockUID: blockUID}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	group.Go(func() error {
		for {
			select {
			case tu, ok := <-ch:
				if !ok {
					return s.balanceAnalyzer.Flush(ctx)
				}
				if err := s.balanceAnalyzer.Process(ctx, tu.update, tu.blockUID); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return group.Wait()
}
