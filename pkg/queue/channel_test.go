package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// fakeQueue is an in-memory queue backend. It logs events so tests can
// assert on the ordering of receives and deletes, and simulates
// visibility by removing received messages until they are deleted or
// redelivered explicitly.
type fakeQueue struct {
	name    string
	visible []types.Message
	deleted []string
	events  []string

	sendErr error
	recvErr error
	failDel map[string]bool
	closed  bool
}

func newFakeQueue(bodies ...string) *fakeQueue {
	q := &fakeQueue{name: "test-queue"}
	for i, b := range bodies {
		q.visible = append(q.visible, types.Message{
			ID:      fmt.Sprintf("m%d", i),
			Body:    b,
			Receipt: fmt.Sprintf("r%d", i),
		})
	}
	return q
}

func (q *fakeQueue) Name() string { return q.name }

func (q *fakeQueue) Send(ctx context.Context, body string) error {
	if q.sendErr != nil {
		return q.sendErr
	}
	id := fmt.Sprintf("m%d", len(q.visible))
	q.visible = append(q.visible, types.Message{ID: id, Body: body, Receipt: "r-" + id})
	q.events = append(q.events, "send")
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context, max int) ([]types.Message, error) {
	q.events = append(q.events, "recv")
	if q.recvErr != nil {
		return nil, q.recvErr
	}
	if max > len(q.visible) {
		max = len(q.visible)
	}
	out := q.visible[:max]
	q.visible = q.visible[max:]
	return out, nil
}

func (q *fakeQueue) Peek(ctx context.Context, max int) ([]types.Message, error) {
	q.events = append(q.events, "peek")
	if max > len(q.visible) {
		max = len(q.visible)
	}
	return q.visible[:max], nil
}

func (q *fakeQueue) Delete(ctx context.Context, msg types.Message) error {
	if q.failDel[msg.ID] {
		q.events = append(q.events, "delfail:"+msg.ID)
		return fmt.Errorf("delete %s: receipt expired", msg.ID)
	}
	q.deleted = append(q.deleted, msg.ID)
	q.events = append(q.events, "del:"+msg.ID)
	return nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

func newTestChannel(q *fakeQueue) *Channel {
	return &Channel{backend: q, kind: "fake"}
}

func bodies(msgs []types.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}

func TestPush(t *testing.T) {
	q := newFakeQueue()
	c := newTestChannel(q)
	assert.True(t, c.Push(context.Background(), "hello"))
	require.Len(t, q.visible, 1)
	assert.Equal(t, "hello", q.visible[0].Body)
}

func TestPushFailureIsSoft(t *testing.T) {
	q := newFakeQueue()
	q.sendErr = fmt.Errorf("throttled")
	c := newTestChannel(q)
	assert.False(t, c.Push(context.Background(), "hello"))
	assert.Empty(t, q.visible)
}

func TestPushOnClosedChannel(t *testing.T) {
	q := newFakeQueue()
	c := newTestChannel(q)
	require.NoError(t, c.Close())
	assert.False(t, c.Push(context.Background(), "hello"))
}

func TestPeekDoesNotConsume(t *testing.T) {
	q := newFakeQueue("a", "b", "c")
	c := newTestChannel(q)

	msgs, err := c.Peek(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, bodies(msgs))
	assert.Len(t, q.visible, 3)
	assert.Empty(t, q.deleted)

	// Zero defaults to the batch bound.
	msgs, err = c.Peek(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, bodies(msgs))

	_, err = c.Peek(context.Background(), -1)
	assert.True(t, dferr.HasCode(err, dferr.CodeInvalidArgument))
	_, err = c.Peek(context.Background(), 11)
	assert.True(t, dferr.HasCode(err, dferr.CodeInvalidArgument))
}

func TestPollDrains(t *testing.T) {
	q := newFakeQueue("a", "b", "c")
	c := newTestChannel(q)

	var got []string
	for msgs, err := range c.Poll(context.Background(), PollOptions{BatchSize: 2}) {
		require.NoError(t, err)
		got = append(got, bodies(msgs)...)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{"m0", "m1", "m2"}, q.deleted)
}

func TestPollNumMessagesCap(t *testing.T) {
	q := newFakeQueue("a", "b", "c", "d", "e")
	c := newTestChannel(q)

	var got []string
	for msgs, err := range c.Poll(context.Background(), PollOptions{NumMessages: 3, BatchSize: 2}) {
		require.NoError(t, err)
		got = append(got, bodies(msgs)...)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Len(t, q.visible, 2, "messages past the cap stay queued")
}

func TestPollPostDeliveryDeleteTiming(t *testing.T) {
	q := newFakeQueue("a", "b", "c", "d")
	c := newTestChannel(q)

	for _, err := range c.Poll(context.Background(), PollOptions{BatchSize: 2}) {
		require.NoError(t, err)
	}
	// Batch one is deleted after its yield and before the next receive.
	assert.Equal(t, []string{
		"recv",
		"del:m0", "del:m1",
		"recv",
		"del:m2", "del:m3",
		"recv",
	}, q.events)
}

func TestPollPreDeliveryDeleteTiming(t *testing.T) {
	q := newFakeQueue("a", "b")
	c := newTestChannel(q)

	for msgs, err := range c.Poll(context.Background(), PollOptions{BatchSize: 2, PreDeliveryDelete: true}) {
		require.NoError(t, err)
		// Deletion happened before we ever saw the batch.
		assert.Equal(t, []string{"m0", "m1"}, q.deleted)
		assert.Equal(t, 2, len(msgs))
	}
}

func TestPollPreDeliveryFailedDeleteWithheld(t *testing.T) {
	q := newFakeQueue("a", "b", "c")
	q.failDel = map[string]bool{"m0": true, "m2": true}
	c := newTestChannel(q)

	var got []string
	for msgs, err := range c.Poll(context.Background(), PollOptions{BatchSize: 2, PreDeliveryDelete: true}) {
		require.NoError(t, err)
		got = append(got, bodies(msgs)...)
	}
	// m0 and m2 stayed on the queue for redelivery; only the message that
	// was actually deleted reached the consumer.
	assert.Equal(t, []string{"b"}, got)
	assert.Equal(t, []string{"m1"}, q.deleted)
}

func TestPollPreDeliveryAllDeletesFailYieldsNothing(t *testing.T) {
	q := newFakeQueue("a", "b")
	q.failDel = map[string]bool{"m0": true, "m1": true}
	c := newTestChannel(q)

	iterations := 0
	for _, err := range c.Poll(context.Background(), PollOptions{PreDeliveryDelete: true}) {
		require.NoError(t, err)
		iterations++
	}
	assert.Zero(t, iterations)
	assert.Empty(t, q.deleted)
}

func TestPollBreakStillDeletesPendingBatch(t *testing.T) {
	q := newFakeQueue("a", "b", "c", "d")
	c := newTestChannel(q)

	for msgs, err := range c.Poll(context.Background(), PollOptions{BatchSize: 2}) {
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, bodies(msgs))
		break
	}
	assert.Equal(t, []string{"m0", "m1"}, q.deleted)
	assert.Len(t, q.visible, 2)
}

func TestPollConsumerPanicLeavesBatchUndeleted(t *testing.T) {
	q := newFakeQueue("a", "b")
	c := newTestChannel(q)

	func() {
		defer func() {
			require.NotNil(t, recover())
		}()
		for msgs, err := range c.Poll(context.Background(), PollOptions{BatchSize: 2}) {
			require.NoError(t, err)
			_ = msgs
			panic("consumer blew up")
		}
	}()
	// The batch was never acknowledged, so the service will redeliver it
	// after the visibility window.
	assert.Empty(t, q.deleted)
}

func TestPollDeletesPendingAfterContextCancel(t *testing.T) {
	q := newFakeQueue("a", "b")
	c := newTestChannel(q)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sawCancel bool
	for msgs, err := range c.Poll(ctx, PollOptions{BatchSize: 2}) {
		if err != nil {
			sawCancel = true
			assert.ErrorIs(t, err, context.Canceled)
			continue
		}
		assert.Equal(t, []string{"a", "b"}, bodies(msgs))
		cancel()
	}
	assert.True(t, sawCancel)
	// The delivered batch is still acknowledged on the way out.
	assert.Equal(t, []string{"m0", "m1"}, q.deleted)
}

func TestPollContinuousRoundsResetCap(t *testing.T) {
	q := newFakeQueue("a", "b", "c")
	c := newTestChannel(q)

	rounds := 0
	var got []string
	for msgs, err := range c.Poll(context.Background(), PollOptions{
		NumMessages:      2,
		BatchSize:        2,
		PollingFrequency: time.Millisecond,
	}) {
		require.NoError(t, err)
		got = append(got, bodies(msgs)...)
		rounds++
		if rounds == 2 {
			break
		}
	}
	// The cap applies per round: round one delivered two messages, round
	// two the remaining one.
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPollInvalidOptions(t *testing.T) {
	c := newTestChannel(newFakeQueue())

	for _, opts := range []PollOptions{
		{BatchSize: 11},
		{BatchSize: -1},
		{NumMessages: -1},
	} {
		var errs []error
		for _, err := range c.Poll(context.Background(), opts) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.True(t, dferr.HasCode(errs[0], dferr.CodeInvalidArgument), "%+v", opts)
	}
}

func TestPollOnClosedChannel(t *testing.T) {
	c := newTestChannel(newFakeQueue("a"))
	require.NoError(t, c.Close())

	var errs []error
	for _, err := range c.Poll(context.Background(), PollOptions{}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.True(t, dferr.HasCode(errs[0], dferr.CodeResourceClosed))
}

func TestPollBackendErrorEndsIteration(t *testing.T) {
	q := newFakeQueue("a")
	c := newTestChannel(q)

	seen := 0
	var last error
	for msgs, err := range c.Poll(context.Background(), PollOptions{}) {
		if err != nil {
			last = err
			continue
		}
		seen += len(msgs)
		q.recvErr = fmt.Errorf("service unavailable")
	}
	assert.Equal(t, 1, seen)
	require.Error(t, last)
}

func TestCloseIdempotent(t *testing.T) {
	q := newFakeQueue()
	c := newTestChannel(q)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, q.closed)
}
