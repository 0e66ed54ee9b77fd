package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dealmate/internal/model"
)

func TestComputeRunStats(t *testing.T) {
	now := time.Now()
	runs := []model.Run{
		{
			Status:    model.RunStatusCompleted,
			CreatedAt: now.Add(-10 * time.Second),
			UpdatedAt: now,
			Report:    &model.RunReport{TotalTokens: 6000, TotalCost: 0.03},
		},
		{
			Status:    model.RunStatusPartiallyCompleted,
			CreatedAt: now.Add(-20 * time.Second),
			UpdatedAt: now,
			Report:    &model.RunReport{TotalTokens: 4000, TotalCost: 0.02},
		},
		{
			Status:    model.RunStatusFailed,
			CreatedAt: now.Add(-6 * time.Second),
			UpdatedAt: now,
		},
		{Status: model.RunStatusDispatching, CreatedAt: now, UpdatedAt: now},
	}

	s := computeRunStats(runs)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Partial)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.InFlight)
	assert.Equal(t, 10000, s.TotalTokens)
	assert.InDelta(t, 0.05, s.TotalCost, 1e-9)
	assert.InDelta(t, 12.0, s.AvgDurSecs, 0.1)
}

func TestComputeRunStatsEmpty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.AvgDurSecs)
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:         "0f9d8c7b-1234-5678-9abc-def012345678",
			DocumentID: "aaaa1111-2222-3333-4444-555566667777",
			DealID:     "deal-42",
			Status:     model.RunStatusCompleted,
			CreatedAt:  now,
			UpdatedAt:  now,
			Report:     &model.RunReport{TotalTokens: 6000, TotalCost: 0.03},
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "0f9d8c7b")
	assert.Contains(t, out, "aaaa1111")
	assert.Contains(t, out, "deal-42")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "6000")
	assert.Contains(t, out, "$0.0300")
	assert.Contains(t, out, "2026-03-14 09:30")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{
		Total: 3, Completed: 2, Failed: 1,
		TotalTokens: 12000, TotalCost: 0.06, AvgDurSecs: 8.5,
	})

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "Total cost:")
	assert.Contains(t, out, "$0.0600")
	assert.Contains(t, out, "8.5s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0f9d8c7b", truncateID("0f9d8c7b-1234-5678-9abc-def012345678"))
	assert.Equal(t, "short", truncateID("short"))
}
