package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("0 3 * * *"))
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.Error(t, Validate("every day"))
	assert.Error(t, Validate("0 0 3 * * *"), "seconds field is not accepted")
}

func TestAddSkipsEmptySpec(t *testing.T) {
	s := New(time.UTC, nil)
	require.NoError(t, s.Add("purge", "", func(context.Context) error { return nil }))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Add("sweep", "*/5 * * * *", func(context.Context) error { return nil }))
	assert.Equal(t, 1, s.Len())

	assert.Error(t, s.Add("bad", "nope", func(context.Context) error { return nil }))
}

func TestStartStopDoesNotLeak(t *testing.T) {
	s := New(time.UTC, nil)
	require.NoError(t, s.Add("sweep", "* * * * *", func(ctx context.Context) error { return ctx.Err() }))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
