package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoraList(t *testing.T) {
	weight := func(w float64) *float64 { return &w }

	tests := []struct {
		name  string
		input string
		want  []DesiredLora
	}{
		{
			name:  "empty string yields no loras",
			input: "",
			want:  nil,
		},
		{
			name:  "single name without weight",
			input: "ink-style",
			want:  []DesiredLora{{Name: "ink-style"}},
		},
		{
			name:  "single name with weight",
			input: "ink-style:0.8",
			want:  []DesiredLora{{Name: "ink-style", Weight: weight(0.8)}},
		},
		{
			name:  "mixed list with and without weights",
			input: "ink-style:0.8, detail-up, soft-light:1.2",
			want: []DesiredLora{
				{Name: "ink-style", Weight: weight(0.8)},
				{Name: "detail-up"},
				{Name: "soft-light", Weight: weight(1.2)},
			},
		},
		{
			name:  "whitespace around entries is trimmed",
			input: "  ink-style : 0.8 ,  detail-up  ",
			want: []DesiredLora{
				{Name: "ink-style", Weight: weight(0.8)},
				{Name: "detail-up"},
			},
		},
		{
			name:  "empty entries are dropped",
			input: "ink-style,,detail-up,",
			want: []DesiredLora{
				{Name: "ink-style"},
				{Name: "detail-up"},
			},
		},
		{
			name:  "unparsable weight keeps full text as name",
			input: "ink-style:heavy",
			want:  []DesiredLora{{Name: "ink-style:heavy"}},
		},
		{
			name:  "colon inside the name splits on the last one",
			input: "style:v2:0.5",
			want:  []DesiredLora{{Name: "style:v2", Weight: weight(0.5)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLoraList(tt.input)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Name, got[i].Name)
				if tt.want[i].Weight == nil {
					assert.Nil(t, got[i].Weight)
				} else {
					require.NotNil(t, got[i].Weight)
					assert.InDelta(t, *tt.want[i].Weight, *got[i].Weight, 1e-9)
				}
			}
		})
	}
}

func TestSameLoraNameSet(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want bool
	}{
		{"both empty", nil, nil, true},
		{"same order", []string{"a", "b"}, []string{"a", "b"}, true},
		{"different order", []string{"a", "b"}, []string{"b", "a"}, true},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
		{"different members", []string{"a", "b"}, []string{"a", "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sameLoraNameSet(tt.a, tt.b))
		})
	}
}
