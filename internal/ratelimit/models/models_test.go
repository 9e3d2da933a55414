package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey_SanitizesSubject(t *testing.T) {
	assert.Equal(t, "ratelimit:linkage:ip:__1", Key(ClassLinkage, "ip", "::1"))
	assert.Equal(t, "ratelimit:issuance:principal:2vxsx-fae", Key(ClassIssuance, "principal", "2vxsx-fae"))
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name    string
		resetAt time.Time
		want    int
	}{
		{"rounds up", now.Add(1500 * time.Millisecond), 2},
		{"exact", now.Add(30 * time.Second), 30},
		{"past reset", now.Add(-time.Second), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryAfterSeconds(now, tt.resetAt))
		})
	}
}
