package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/cbind/internal/session"
)

// progressReporter shows a progress bar while several files are extracted.
// It stays silent for a single file or when quiet is set.
type progressReporter struct {
	quiet bool
	out   io.Writer
	bar   *progressbar.ProgressBar
	start time.Time

	failed int
	cached int
}

func newProgressReporter(out io.Writer, quiet bool) *progressReporter {
	return &progressReporter{out: out, quiet: quiet}
}

func (p *progressReporter) OnStart(totalFiles int) {
	p.start = time.Now()
	if p.quiet || totalFiles < 2 {
		return
	}
	p.bar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

// OnFileDone is called once per extracted file.
func (p *progressReporter) OnFileDone(fr session.FileResult) {
	if fr.Err != nil {
		p.failed++
	}
	if fr.Cached {
		p.cached++
	}
	if p.bar != nil {
		p.bar.Add(1)
	}
}

func (p *progressReporter) OnComplete(totalFiles int) {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
	if p.quiet || totalFiles < 2 {
		return
	}
	fmt.Fprintf(p.out, "✓ Extracted %d files in %.1fs (%d cached, %d failed)\n",
		totalFiles, time.Since(p.start).Seconds(), p.cached, p.failed)
}
