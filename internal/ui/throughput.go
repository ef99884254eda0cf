package ui

import (
	"fmt"
	"time"
)

// ThroughputCalculator tracks the file processing rate of a run
type ThroughputCalculator struct {
	startTime  time.Time
	totalItems int64
	now        func() time.Time
}

// NewThroughputCalculator creates a new throughput calculator
func NewThroughputCalculator() *ThroughputCalculator {
	return newThroughputCalculatorWithClock(time.Now)
}

func newThroughputCalculatorWithClock(now func() time.Time) *ThroughputCalculator {
	return &ThroughputCalculator{
		startTime: now(),
		now:       now,
	}
}

// Update records the cumulative number of processed items
func (t *ThroughputCalculator) Update(items int64) {
	t.totalItems = items
}

// GetAverageItemsPerSecond returns overall average items per second
func (t *ThroughputCalculator) GetAverageItemsPerSecond() float64 {
	elapsed := t.now().Sub(t.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.totalItems) / elapsed
}

// FormatItemsPerSecond formats a files/sec rate as human-readable string
func FormatItemsPerSecond(itemsPerSec float64) string {
	if itemsPerSec < 0.01 {
		return "< 0.01 files/sec"
	}
	return fmt.Sprintf("%.2f files/sec", itemsPerSec)
}

// FormatDuration renders a duration rounded to a readable precision
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
