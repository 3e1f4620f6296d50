package queue

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/driftfs/driftfs/internal/backend"
	"github.com/driftfs/driftfs/internal/metrics"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Per-request batch bound shared by the supported queue services.
const (
	defaultBatchSize = 10
	maxBatchSize     = 10
)

// Channel is a handle on one message queue. It is not safe for
// concurrent use.
type Channel struct {
	backend backend.Queue
	// kind identifies the backend service for metrics.
	kind    string
	metrics *metrics.Collector
	logger  *slog.Logger
	closed  bool
}

// Options configures channel construction.
type Options struct {
	// Metrics receives instrumentation. Nil disables it.
	Metrics *metrics.Collector
	// Logger receives diagnostics such as failed pushes. Nil keeps the
	// channel silent.
	Logger *slog.Logger
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return &Options{}
	}
	return o
}

// PollOptions configures one Poll call. The zero value drains whatever
// is currently visible in batches of ten and deletes each batch after
// the consumer has seen it.
type PollOptions struct {
	// NumMessages caps how many messages one polling round delivers.
	// Zero means no cap: the round drains until a fetch comes back
	// empty. With a positive PollingFrequency the cap applies to each
	// round anew.
	NumMessages int

	// BatchSize is the per-request fetch size, at most ten. Zero means
	// ten.
	BatchSize int

	// PollingFrequency, when positive, makes Poll sleep that long after
	// draining and then start another round, indefinitely. Zero stops
	// Poll once the queue is drained.
	PollingFrequency time.Duration

	// PreDeliveryDelete deletes each batch before yielding it instead of
	// after. Messages are then gone even if the consumer fails while
	// processing them; a message whose delete fails is withheld from the
	// consumer so it is never processed twice.
	PreDeliveryDelete bool
}

// Name returns the queue's name.
func (c *Channel) Name() string { return c.backend.Name() }

// Close releases the channel's session. Idempotent.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.backend.Close()
}

// Push enqueues one message. Failure is soft: it is logged and counted,
// and false is returned, but nothing propagates. Use the return value
// when delivery matters.
func (c *Channel) Push(ctx context.Context, body string) bool {
	if c.closed {
		c.metrics.RecordPush(false)
		if c.logger != nil {
			c.logger.Warn("push on closed channel", "queue", c.backend.Name())
		}
		return false
	}
	err := c.backend.Send(ctx, body)
	c.metrics.RecordBackendOp(c.kind, "send", err)
	c.metrics.RecordPush(err == nil)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("push failed", "queue", c.backend.Name(), "error", err)
		}
		return false
	}
	return true
}

// Peek fetches up to max currently visible messages without consuming
// them. Zero means the service batch bound of ten. Depending on the
// service this may still count against each message's receive counter.
func (c *Channel) Peek(ctx context.Context, max int) ([]types.Message, error) {
	if c.closed {
		return nil, dferr.ResourceClosed()
	}
	if max == 0 {
		max = maxBatchSize
	}
	if max < 0 || max > maxBatchSize {
		return nil, dferr.New(dferr.CodeInvalidArgument,
			fmt.Sprintf("peek size %d outside [1, %d]", max, maxBatchSize))
	}
	msgs, err := c.backend.Peek(ctx, max)
	c.metrics.RecordBackendOp(c.kind, "peek", err)
	return msgs, err
}

// Poll consumes messages in batches. Each iteration yields one batch;
// iteration order within a batch is the delivery order of the service.
//
// Deletion timing follows opts.PreDeliveryDelete. With post-delivery
// deletion (the default) a batch is deleted once the consumer has moved
// past it: before the next fetch, or when iteration ends, including by
// break. A batch the consumer panicked on is not deleted and becomes
// visible again after the service's visibility window, so it is not
// lost. Deletions owed at teardown proceed even if ctx has been
// cancelled.
//
// A backend failure is yielded as the final iteration's error.
func (c *Channel) Poll(ctx context.Context, opts PollOptions) iter.Seq2[[]types.Message, error] {
	return func(yield func([]types.Message, error) bool) {
		if c.closed {
			yield(nil, dferr.ResourceClosed())
			return
		}
		batch := opts.BatchSize
		if batch == 0 {
			batch = defaultBatchSize
		}
		if batch < 0 || batch > maxBatchSize {
			yield(nil, dferr.New(dferr.CodeInvalidArgument,
				fmt.Sprintf("batch size %d outside [1, %d]", opts.BatchSize, maxBatchSize)))
			return
		}
		if opts.NumMessages < 0 {
			yield(nil, dferr.New(dferr.CodeInvalidArgument,
				fmt.Sprintf("message cap %d is negative", opts.NumMessages)))
			return
		}

		// pending is the batch the consumer is holding under
		// post-delivery deletion. yieldReturned distinguishes a consumer
		// that moved on (or broke) from one that panicked mid-batch: a
		// panic unwinds through yield without returning, and the batch
		// must then stay undeleted so the service redelivers it.
		var pending []types.Message
		yieldReturned := true
		defer func() {
			if len(pending) > 0 && yieldReturned {
				c.deleteBatch(context.WithoutCancel(ctx), pending)
			}
		}()
		flushPending := func() {
			if len(pending) > 0 {
				c.deleteBatch(context.WithoutCancel(ctx), pending)
				pending = nil
			}
		}

		for {
			delivered := 0
			for {
				if opts.NumMessages > 0 && delivered >= opts.NumMessages {
					break
				}
				n := batch
				if opts.NumMessages > 0 && opts.NumMessages-delivered < n {
					n = opts.NumMessages - delivered
				}
				flushPending()
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return
				}
				msgs, err := c.backend.Receive(ctx, n)
				c.metrics.RecordBackendOp(c.kind, "receive", err)
				if err != nil {
					yield(nil, err)
					return
				}
				if len(msgs) == 0 {
					break
				}
				delivered += len(msgs)
				c.metrics.RecordReceived(len(msgs))

				if opts.PreDeliveryDelete {
					// Only messages actually deleted are delivered; a
					// failed delete leaves the message on the queue for
					// redelivery, and handing it out anyway would have it
					// processed twice.
					deleted := c.deleteBatch(ctx, msgs)
					if len(deleted) == 0 {
						continue
					}
					if !yield(deleted, nil) {
						return
					}
					continue
				}
				pending = msgs
				yieldReturned = false
				ok := yield(msgs, nil)
				yieldReturned = true
				if !ok {
					return
				}
			}

			if opts.PollingFrequency <= 0 {
				return
			}
			flushPending()
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-time.After(opts.PollingFrequency):
			}
		}
	}
}

// deleteBatch removes each message and returns the ones actually
// removed. A failed deletion only means the service redelivers that
// message later, so it is logged and skipped rather than propagated.
func (c *Channel) deleteBatch(ctx context.Context, msgs []types.Message) []types.Message {
	deleted := msgs[:0:0]
	for _, m := range msgs {
		err := c.backend.Delete(ctx, m)
		c.metrics.RecordBackendOp(c.kind, "delete", err)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("delete failed, message will be redelivered",
					"queue", c.backend.Name(), "message_id", m.ID, "error", err)
			}
			continue
		}
		c.metrics.RecordDeleted(1)
		deleted = append(deleted, m)
	}
	return deleted
}
