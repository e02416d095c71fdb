package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 19800)

func daysBefore(now time.Time, n int) *time.Time {
	t := now.AddDate(0, 0, -n)
	return &t
}

func TestBucketFor(t *testing.T) {
	now := time.Date(2024, 6, 30, 15, 0, 0, 0, ist)

	tests := []struct {
		name    string
		started *time.Time
		want    SLABucket
	}{
		{"no start date", nil, SLANone},
		{"today", daysBefore(now, 0), SLA30},
		{"exactly 30 days", daysBefore(now, 30), SLA30},
		{"31 days", daysBefore(now, 31), SLA60},
		{"60 days", daysBefore(now, 60), SLA60},
		{"61 days", daysBefore(now, 61), SLA90},
		{"90 days", daysBefore(now, 90), SLA90},
		{"91 days", daysBefore(now, 91), SLAOver},
		{"a year", daysBefore(now, 365), SLAOver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketFor(tt.started, now, ist))
		})
	}
}

func TestBucketForUsesCalendarDays(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 30, 0, 0, ist)
	// 30 days and 23 hours earlier is still the 30th calendar day back.
	started := time.Date(2024, 5, 31, 1, 0, 0, 0, ist)
	assert.Equal(t, SLA30, BucketFor(&started, now, ist))

	started = time.Date(2024, 5, 30, 23, 59, 0, 0, ist)
	assert.Equal(t, SLA60, BucketFor(&started, now, ist))
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, ist)

	from, to := SLA30.Window(now, ist)
	require.NotNil(t, from)
	assert.Nil(t, to)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, ist), *from)

	from, to = SLAOver.Window(now, ist)
	assert.Nil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, ist), *to)

	from, to = SLANone.Window(now, ist)
	assert.Nil(t, from)
	assert.Nil(t, to)
}

func TestParseSLABucket(t *testing.T) {
	for _, raw := range []string{"30", "60", "90", "91"} {
		_, err := ParseSLABucket(raw)
		assert.NoError(t, err)
	}
	_, err := ParseSLABucket("120")
	assert.Error(t, err)
	_, err = ParseSLABucket("soon")
	assert.Error(t, err)
}
