package query

import (
	"fmt"
	"strconv"
	"time"
)

// SLABucket classifies how long ago the review of an application started.
type SLABucket int

const (
	SLANone SLABucket = 0
	SLA30   SLABucket = 30
	SLA60   SLABucket = 60
	SLA90   SLABucket = 90
	SLAOver SLABucket = 91
)

var SLABuckets = []SLABucket{SLA30, SLA60, SLA90, SLAOver}

func ParseSLABucket(s string) (SLABucket, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return SLANone, fmt.Errorf("invalid sla_filter %q", s)
	}
	for _, b := range SLABuckets {
		if SLABucket(n) == b {
			return b, nil
		}
	}
	return SLANone, fmt.Errorf("sla_filter must be one of 30, 60, 90, 91")
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Window returns the half-open started_at range [from, to) of the bucket,
// counted in whole calendar days before today. A nil bound is open.
//
//	30: 0..30 days ago, 60: 31..60, 90: 61..90, 91: more than 90
func (b SLABucket) Window(now time.Time, loc *time.Location) (from, to *time.Time) {
	today := startOfDay(now, loc)
	daysAgo := func(n int) *time.Time {
		t := today.AddDate(0, 0, -n)
		return &t
	}

	switch b {
	case SLA30:
		return daysAgo(30), nil
	case SLA60:
		return daysAgo(60), daysAgo(30)
	case SLA90:
		return daysAgo(90), daysAgo(60)
	case SLAOver:
		return nil, daysAgo(90)
	default:
		return nil, nil
	}
}

// BucketFor places a start date into its bucket. Rows without a start date
// belong to no bucket.
func BucketFor(startedAt *time.Time, now time.Time, loc *time.Location) SLABucket {
	if startedAt == nil {
		return SLANone
	}
	for _, b := range SLABuckets {
		from, to := b.Window(now, loc)
		if from != nil && startedAt.Before(*from) {
			continue
		}
		if to != nil && !startedAt.Before(*to) {
			continue
		}
		return b
	}
	return SLANone
}
