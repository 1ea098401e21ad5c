package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStress_JSON(t *testing.T) {
	withFlags(t, true)
	opts := stressOptions{Seed: 10, Runs: 3, Workers: 2, Steps: 200, Warmup: 10, MaxSlabs: 64, ChunkRatio: 0.5}

	out, err := captureOutput(t, func() error {
		return runStress(context.Background(), testConfig(), opts)
	})
	require.NoError(t, err)

	var got StressOutput
	decodeJSON(t, out, &got)
	require.Len(t, got.Runs, 3)
	for i, r := range got.Runs {
		require.Equal(t, uint64(10+i), r.Seed)
		require.Zero(t, r.Failures)
		require.Equal(t, r.Allocs-r.Frees, r.Live)
		require.Len(t, r.Fingerprint, 16)
	}
	require.Zero(t, got.Failed)

	// Same seeds, same results.
	again, err := captureOutput(t, func() error {
		return runStress(context.Background(), testConfig(), opts)
	})
	require.NoError(t, err)
	require.JSONEq(t, out, again)
}

func TestStress_Text(t *testing.T) {
	withFlags(t, false)
	opts := stressOptions{Seed: 1, Runs: 1, Workers: 1, Steps: 50, Warmup: 5, MaxSlabs: 16, Drain: true}

	out, err := captureOutput(t, func() error {
		return runStress(context.Background(), testConfig(), opts)
	})
	require.NoError(t, err)
	require.Contains(t, out, "Seed 1: ok")
	require.Contains(t, out, "Live: 0 (peak ")
	require.Contains(t, out, "Fingerprint: ")
}

func TestStress_Trace(t *testing.T) {
	withFlags(t, false)
	opts := stressOptions{Seed: 4, Runs: 1, Workers: 1, Steps: 2, Warmup: 1, MaxSlabs: 8, Trace: true}

	out, err := captureOutput(t, func() error {
		return runStress(context.Background(), testConfig(), opts)
	})
	require.NoError(t, err)
	require.Contains(t, out, "Allocating: ")
	require.Contains(t, out, "Zone 0: num_free:")
}

func TestStress_InvalidOptions(t *testing.T) {
	withFlags(t, false)
	ctx := context.Background()

	err := runStress(ctx, testConfig(), stressOptions{Runs: 0, MaxSlabs: 1})
	require.ErrorContains(t, err, "--runs")

	err = runStress(ctx, testConfig(), stressOptions{Runs: 2, MaxSlabs: 1, Trace: true})
	require.ErrorContains(t, err, "--trace")

	_, err = captureOutput(t, func() error {
		return runStress(ctx, testConfig(), stressOptions{Runs: 1, MaxSlabs: 0})
	})
	require.Error(t, err)
}
