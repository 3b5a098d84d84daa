package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAuthCookies(t *testing.T) {
	tests := []struct {
		name    string
		cookies []string
		want    bool
	}{
		{
			name:    "both auth cookies present",
			cookies: []string{"user_token", "user_token_expire_at"},
			want:    true,
		},
		{
			name:    "auth cookies among unrelated ones",
			cookies: []string{"_ga", "user_token", "cf_clearance", "user_token_expire_at"},
			want:    true,
		},
		{
			name:    "token without expiry is not logged in",
			cookies: []string{"user_token"},
			want:    false,
		},
		{
			name:    "expiry without token is not logged in",
			cookies: []string{"user_token_expire_at"},
			want:    false,
		},
		{
			name:    "no cookies",
			cookies: nil,
			want:    false,
		},
		{
			name:    "similar names do not count",
			cookies: []string{"user_token_v2", "user_token_expire"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasAuthCookies(tt.cookies))
		})
	}
}
