package logger

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders an ASCII progress bar with optional color support.
type ProgressBar struct {
	current     int
	total       int
	width       int
	enableColor bool
	mu          sync.RWMutex
}

// NewProgressBar creates a progress bar for total units rendered at the
// given character width.
func NewProgressBar(total, width int, enableColor bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{
		total:       total,
		width:       width,
		enableColor: enableColor,
	}
}

// Update sets the current progress value.
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
}

// Increment advances the current progress by 1.
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
}

// Percentage returns the progress percentage clamped to 0-100.
func (pb *ProgressBar) Percentage() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.percentageLocked()
}

func (pb *ProgressBar) percentageLocked() int {
	if pb.total == 0 {
		return 0
	}
	perc := (pb.current * 100) / pb.total
	if perc > 100 {
		return 100
	}
	if perc < 0 {
		return 0
	}
	return perc
}

// Render generates the bar string, e.g. "[=====     ] 5/10 (50%)".
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	perc := pb.percentageLocked()
	filled := (perc * pb.width) / 100
	if filled > pb.width {
		filled = pb.width
	}

	bar := make([]byte, 0, pb.width+2)
	bar = append(bar, '[')
	for i := 0; i < pb.width; i++ {
		if i < filled {
			bar = append(bar, '=')
		} else {
			bar = append(bar, ' ')
		}
	}
	bar = append(bar, ']')

	result := fmt.Sprintf("%s %d/%d (%d%%)", bar, pb.current, pb.total, perc)

	if pb.enableColor {
		if perc < 100 {
			return color.New(color.FgCyan).Sprint(result)
		}
		return color.New(color.FgGreen).Sprint(result)
	}
	return result
}
