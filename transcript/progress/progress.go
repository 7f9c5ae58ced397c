// Package progress renders Run progress on a terminal.
package progress

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/theimaginaryfoundation/page-scribe/transcript"
)

// Bar is a transcript.Observer that draws one bar step per recorded item.
type Bar struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
	failed      int
}

var _ transcript.Observer = (*Bar)(nil)

// NewBar returns a Bar writing to w (usually stderr).
func NewBar(w io.Writer, description string) *Bar {
	return &Bar{w: w, description: description}
}

func (b *Bar) Start(total int) {
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(color.BlueString(b.description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (b *Bar) ItemDone(entry transcript.Entry) {
	if b.bar == nil {
		return
	}
	if entry.Failed {
		b.failed++
		b.bar.Describe(color.YellowString("%s (%d failed)", b.description, b.failed))
	}
	_ = b.bar.Add(1)
}

func (b *Bar) Finish(res transcript.RunResult) {
	if b.bar == nil {
		return
	}
	_ = b.bar.Exit()
	fmt.Fprintln(b.w)
	switch {
	case res.Canceled:
		fmt.Fprintln(b.w, color.YellowString("interrupted: %d/%d items recorded", res.Processed, res.Total))
	case res.BudgetExceeded:
		fmt.Fprintln(b.w, color.YellowString("time budget reached: %d/%d items recorded", res.Processed, res.Total))
	case res.Failed > 0:
		fmt.Fprintln(b.w, color.YellowString("done: %d items, %d failed", res.Processed, res.Failed))
	default:
		fmt.Fprintln(b.w, color.GreenString("done: %d items", res.Processed))
	}
}
