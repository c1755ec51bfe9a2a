package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loopsmith/internal/ir"
)

func TestRecordRun_Inserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun(t, "heat", "baseline", 16)
	stored, inserted, err := s.RecordRun(ctx, run)
	require.NoError(t, err)

	assert.True(t, inserted)
	assert.Equal(t, "run-0001", stored.ID)
	assert.Equal(t, int64(1), stored.Seq)
	assert.Equal(t, run.Key, stored.Key)
	assert.Equal(t, []string{"denormals", "blocking"}, stored.Applied)
	assert.JSONEq(t, string(run.Arguments), string(stored.Arguments))
	assert.JSONEq(t, string(run.Output), string(stored.Output))
	assert.Equal(t, ir.RewriterVersion, stored.RewriterVersion)
}

func TestRecordRun_SameKeyKeepsFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.RecordRun(ctx, createTestRun(t, "heat", "baseline", 16))
	require.NoError(t, err)
	require.True(t, inserted)

	again := createTestRun(t, "heat", "baseline", 16)
	again.Output = []byte(`{"nodes":["changed"]}`)
	stored, inserted, err := s.RecordRun(ctx, again)
	require.NoError(t, err)

	assert.False(t, inserted)
	assert.Equal(t, first.ID, stored.ID)
	assert.JSONEq(t, `{"nodes":[]}`, string(stored.Output))

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_DistinctKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, run := range []Run{
		createTestRun(t, "heat", "baseline", 16),
		createTestRun(t, "heat", "speculative", 16),
		createTestRun(t, "heat", "baseline", 32),
	} {
		_, inserted, err := s.RecordRun(ctx, run)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
}

func TestRecordRun_Defaults(t *testing.T) {
	s := createTestStore(t)
	run := createTestRun(t, "heat", "baseline", 16)
	run.Applied, run.Arguments, run.Output = nil, nil, nil
	run.ID = "explicit"

	stored, _, err := s.RecordRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "explicit", stored.ID)
	assert.Equal(t, []string{}, stored.Applied)
	assert.Equal(t, "[]", string(stored.Arguments))
	assert.Equal(t, "{}", string(stored.Output))
}

func TestRecordRun_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	missing := createTestRun(t, "heat", "baseline", 16)
	missing.Kernel = ""
	_, _, err := s.RecordRun(ctx, missing)
	assert.ErrorContains(t, err, "required")

	bad := createTestRun(t, "heat", "baseline", 16)
	bad.Output = []byte(`{"nodes":`)
	_, _, err = s.RecordRun(ctx, bad)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestDeleteRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, run := range []Run{
		createTestRun(t, "heat", "baseline", 16),
		createTestRun(t, "wave", "baseline", 32),
		createTestRun(t, "wave", "speculative", 32),
	} {
		_, _, err := s.RecordRun(ctx, run)
		require.NoError(t, err)
	}

	n, err := s.DeleteRuns(ctx, "wave")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteRuns(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
