package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanReconcile(t *testing.T) {
	weight := func(w float64) *float64 { return &w }

	active := ActiveConfig{
		ModelName:    "Moonbeam",
		ModelVersion: "v2",
		Loras: []ActiveLora{
			{Name: "ink-style", Weight: 0.8},
			{Name: "detail-up", Weight: 0.7},
		},
	}

	tests := []struct {
		name    string
		active  ActiveConfig
		desired DesiredConfig
		want    reconcilePlan
	}{
		{
			name:   "matching config is a no-op",
			active: active,
			desired: DesiredConfig{
				ModelName:    "Moonbeam",
				ModelVersion: "v2",
				Loras: []DesiredLora{
					{Name: "ink-style", Weight: weight(0.8)},
					{Name: "detail-up"},
				},
			},
			want: reconcilePlan{},
		},
		{
			name:   "lora order does not matter",
			active: active,
			desired: DesiredConfig{
				ModelName: "Moonbeam",
				Loras: []DesiredLora{
					{Name: "detail-up"},
					{Name: "ink-style"},
				},
			},
			want: reconcilePlan{},
		},
		{
			name:   "model comparison is case insensitive",
			active: active,
			desired: DesiredConfig{
				ModelName: "moonbeam",
				Loras: []DesiredLora{
					{Name: "ink-style"},
					{Name: "detail-up"},
				},
			},
			want: reconcilePlan{},
		},
		{
			name:   "model change forces lora reapplication",
			active: active,
			desired: DesiredConfig{
				ModelName: "Starlight",
				Loras: []DesiredLora{
					{Name: "ink-style"},
					{Name: "detail-up"},
				},
			},
			want: reconcilePlan{setModel: true, setLoras: true},
		},
		{
			name:   "version mismatch counts as a model change",
			active: active,
			desired: DesiredConfig{
				ModelName:    "Moonbeam",
				ModelVersion: "v3",
				Loras: []DesiredLora{
					{Name: "ink-style"},
					{Name: "detail-up"},
				},
			},
			want: reconcilePlan{setModel: true, setLoras: true},
		},
		{
			name:   "empty desired version accepts any active version",
			active: active,
			desired: DesiredConfig{
				ModelName: "Moonbeam",
				Loras: []DesiredLora{
					{Name: "ink-style"},
					{Name: "detail-up"},
				},
			},
			want: reconcilePlan{},
		},
		{
			name:   "lora set change alone replans loras only",
			active: active,
			desired: DesiredConfig{
				ModelName: "Moonbeam",
				Loras:     []DesiredLora{{Name: "soft-light"}},
			},
			want: reconcilePlan{setLoras: true},
		},
		{
			name:   "removing all loras replans loras",
			active: active,
			desired: DesiredConfig{
				ModelName: "Moonbeam",
			},
			want: reconcilePlan{setLoras: true},
		},
		{
			name:   "empty desired model keeps the active model",
			active: active,
			desired: DesiredConfig{
				Loras: []DesiredLora{
					{Name: "ink-style"},
					{Name: "detail-up"},
				},
			},
			want: reconcilePlan{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := planReconcile(tt.active, tt.desired)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == reconcilePlan{}, got.isNoop())
		})
	}
}

func TestApplyReconcilePlanReadsPromptAfterFullFlow(t *testing.T) {
	type call string

	t.Run("lora only plan still returns trigger words", func(t *testing.T) {
		var calls []call
		got, err := applyReconcilePlan(reconcilePlan{setLoras: true},
			func() error { calls = append(calls, "model"); return nil },
			func() error { calls = append(calls, "loras"); return nil },
			func() string { calls = append(calls, "read"); return "masterpiece, best quality" })
		require.NoError(t, err)
		assert.Equal(t, "masterpiece, best quality", got)
		assert.Equal(t, []call{"loras", "read"}, calls)
	})

	t.Run("model change reads only after loras reapplied", func(t *testing.T) {
		var calls []call
		got, err := applyReconcilePlan(reconcilePlan{setModel: true, setLoras: true},
			func() error { calls = append(calls, "model"); return nil },
			func() error { calls = append(calls, "loras"); return nil },
			func() string { calls = append(calls, "read"); return "1girl" })
		require.NoError(t, err)
		assert.Equal(t, "1girl", got)
		assert.Equal(t, []call{"model", "loras", "read"}, calls)
	})

	t.Run("model failure skips loras and the read", func(t *testing.T) {
		var calls []call
		boom := errors.New("market dialog did not open")
		got, err := applyReconcilePlan(reconcilePlan{setModel: true, setLoras: true},
			func() error { calls = append(calls, "model"); return boom },
			func() error { calls = append(calls, "loras"); return nil },
			func() string { calls = append(calls, "read"); return "unused" })
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, got)
		assert.Equal(t, []call{"model"}, calls)
	})

	t.Run("lora failure skips the read", func(t *testing.T) {
		var calls []call
		boom := errors.New("no lora search result")
		got, err := applyReconcilePlan(reconcilePlan{setLoras: true},
			func() error { calls = append(calls, "model"); return nil },
			func() error { calls = append(calls, "loras"); return boom },
			func() string { calls = append(calls, "read"); return "unused" })
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, got)
		assert.Equal(t, []call{"loras"}, calls)
	})
}
