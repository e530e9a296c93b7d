package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschof/subscriptions/pkg/expect"
	"github.com/tschof/subscriptions/pkg/tasks"
)

// fixedCondition yields the values in sequence, one per Next call, then
// signals end of stream.
type fixedCondition struct {
	values []expect.Expect[bool]
	idx    int
}

func (c *fixedCondition) Next(ctx context.Context) (expect.Expect[bool], bool, error) {
	if c.idx >= len(c.values) {
		return expect.Expect[bool]{}, false, nil
	}
	v := c.values[c.idx]
	c.idx++
	return v, true, nil
}

type recordingTask struct {
	ran   chan struct{}
	state tasks.State
	err   error
}

func (t *recordingTask) Run(ctx context.Context) (tasks.State, error) {
	close(t.ran)
	<-ctx.Done()
	return t.state, t.err
}

func TestWhenRunsInnerTaskOnTrue(t *testing.T) {
	cond := &fixedCondition{values: []expect.Expect[bool]{
		expect.Of(false), expect.Of(false), expect.Of(true),
	}}
	inner := &recordingTask{ran: make(chan struct{}), state: tasks.Complete}

	w := tasks.New(cond, inner)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Execute(ctx)

	select {
	case <-inner.ran:
	case <-time.After(time.Second):
		t.Fatal("inner task never started")
	}
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("when never terminated")
	}
	assert.Equal(t, tasks.Complete, w.State())
}

func TestWhenTerminatesCompleteWhenConditionEnds(t *testing.T) {
	cond := &fixedCondition{values: []expect.Expect[bool]{expect.Of(false)}}
	inner := &recordingTask{ran: make(chan struct{})}

	w := tasks.New(cond, inner)
	w.Execute(context.Background())

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("when never terminated")
	}
	assert.Equal(t, tasks.Complete, w.State())
}

func TestWhenFailsOnConditionError(t *testing.T) {
	wantErr := errors.New("boom")
	cond := &fixedCondition{values: []expect.Expect[bool]{expect.OfError[bool](wantErr)}}
	inner := &recordingTask{ran: make(chan struct{})}

	w := tasks.New(cond, inner)
	w.Execute(context.Background())

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("when never terminated")
	}
	assert.Equal(t, tasks.Failed, w.State())
	require.Error(t, w.Err())
	assert.ErrorIs(t, w.Err(), wantErr)
}

func TestWhenCancelBeforeCondition(t *testing.T) {
	blocking := &blockingCondition{}

	inner := &recordingTask{ran: make(chan struct{})}
	w := tasks.New(blocking, inner)
	w.Execute(context.Background())
	w.Cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("when never terminated")
	}
	assert.Equal(t, tasks.Canceled, w.State())
}

// blockingCondition's Next blocks until ctx is done, mirroring a live
// reactor that never fires before cancellation.
type blockingCondition struct{}

func (blockingCondition) Next(ctx context.Context) (expect.Expect[bool], bool, error) {
	<-ctx.Done()
	return expect.Expect[bool]{}, false, ctx.Err()
}

func TestWhenInnerTaskFailurePropagates(t *testing.T) {
	cond := &fixedCondition{values: []expect.Expect[bool]{expect.Of(true)}}
	wantErr := errors.New("inner failed")
	inner := &recordingTask{ran: make(chan struct{}), state: tasks.Failed, err: wantErr}

	w := tasks.New(cond, inner)
	ctx, cancel := context.WithCancel(context.Background())
	w.Execute(ctx)

	select {
	case <-inner.ran:
	case <-time.After(time.Second):
		t.Fatal("inner task never started")
	}
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("when never terminated")
	}
	assert.Equal(t, tasks.Failed, w.State())
	assert.ErrorIs(t, w.Err(), wantErr)
}
