package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureResolveOnce(t *testing.T) {
	f := NewFuture()
	f.Resolve(1)
	f.Resolve(2)
	f.Reject(assert.AnError)

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFutureAwaitCancel(t *testing.T) {
	f := NewFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailedFuture(t *testing.T) {
	_, err := FailedFuture(assert.AnError).Await(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
