package ui

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps the progressbar library to show how many bundles of a run
// have been processed, with percentage, ETA and files/sec
type ProgressBar struct {
	bar     *progressbar.ProgressBar
	total   int64
	current int64
}

// NewProgressBar creates a progress bar on stderr, so it never interleaves
// with the status lines written to stdout
func NewProgressBar(total int64, description string) *ProgressBar {
	return NewProgressBarWithWriter(total, description, os.Stderr)
}

// NewProgressBarWithWriter creates a progress bar that writes to a specific writer
// Useful for testing with mock writers
func NewProgressBarWithWriter(total int64, description string, writer io.Writer) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(false),
	)

	return &ProgressBar{
		bar:   bar,
		total: total,
	}
}

// Add increments the progress bar by the given amount
func (p *ProgressBar) Add(amount int64) error {
	p.current += amount
	return p.bar.Add64(amount)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// GetPercentage returns current completion percentage (0-100)
func (p *ProgressBar) GetPercentage() float64 {
	if p.total == 0 {
		return 0
	}
	return (float64(p.current) / float64(p.total)) * 100
}
