package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dealmate/internal/model"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile model.ModelProfile
		in, out int
		want    float64
	}{
		{
			name:    "published pricing example",
			profile: model.ModelProfile{InputPer1K: 0.01, OutputPer1K: 0.03},
			in:      1000, out: 500,
			want: 0.01 + 0.015, // $0.025
		},
		{
			name:    "zero tokens",
			profile: model.ModelProfile{InputPer1K: 0.01, OutputPer1K: 0.03},
			want:    0,
		},
		{
			name:    "sonnet rates",
			profile: model.ModelProfile{InputPer1K: 0.003, OutputPer1K: 0.015},
			in:      200000, out: 4096,
			want: 0.6 + 0.06144,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Compute(tt.profile, tt.in, tt.out), 1e-9)
		})
	}
}

func TestRecord(t *testing.T) {
	t.Parallel()
	p := model.ModelProfile{Model: "claude-sonnet-4-5-20250929", InputPer1K: 0.01, OutputPer1K: 0.03}

	rec := Record("run-1", p, 1000, 500, 1500*time.Millisecond, true)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "run-1", rec.AgentRunID)
	assert.Equal(t, p.Model, rec.Model)
	assert.Equal(t, 1500, rec.TotalTokens)
	assert.InDelta(t, 0.025, rec.CostUSD, 1e-9)
	assert.Equal(t, int64(1500), rec.LatencyMS)
	assert.True(t, rec.Success)
	assert.False(t, rec.CreatedAt.IsZero())
}
