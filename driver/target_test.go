package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextTargetSubSixtySecondPeriod(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 7, 0, time.UTC)
	target := nextTarget(now, 5)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC), target)
}

func TestNextTargetExtendsWhenIntervalTooShort(t *testing.T) {
	// 1ms before a 5s slot boundary: the resulting 1ms interval is below
	// the <=1s threshold for a 5s period, so the target must skip ahead by
	// one more period.
	now := time.Date(2024, 1, 1, 12, 0, 9, 999000000, time.UTC)
	target := nextTarget(now, 5)
	assert.True(t, target.Sub(now) > time.Second)
}

func TestNextTargetSixtySecondPeriod(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)
	target := nextTarget(now, 60)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC), target)
}

func TestCycleAlignmentProgressesByPeriod(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var targets []time.Time
	for i := 0; i < 5; i++ {
		target := nextTarget(now, 5)
		targets = append(targets, target)
		now = target
	}
	for i := 1; i < len(targets); i++ {
		assert.Equal(t, 5*time.Second, targets[i].Sub(targets[i-1]))
		assert.Equal(t, 0, targets[i].Second()%5)
	}
}

func TestRoundedCycleStartPrefersTargetWhenClose(t *testing.T) {
	target := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	actual := target.Add(time.Second)
	assert.Equal(t, target, roundedCycleStart(target, actual))
}

func TestRoundedCycleStartFallsBackToActualWhenFarOff(t *testing.T) {
	target := time.Date(2024, 1, 1, 12, 0, 10, 0, time.UTC)
	actual := target.Add(5 * time.Second)
	assert.Equal(t, actual.Truncate(time.Second), roundedCycleStart(target, actual))
}
