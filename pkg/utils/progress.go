package utils

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar renders a counted progress line, e.g. while warming icon thumbnails.
type ProgressBar struct {
	out         io.Writer
	total       int64
	current     int64
	description string
	startTime   time.Time
	width       int
	showETA     bool
}

// NewProgressBar creates a new progress bar writing to out. A nil out disables rendering.
func NewProgressBar(out io.Writer, total int64, description string) *ProgressBar {
	return &ProgressBar{
		out:         out,
		total:       total,
		description: description,
		startTime:   time.Now(),
		width:       30,
		showETA:     true,
	}
}

// Update updates the progress bar
func (pb *ProgressBar) Update(current int64) {
	pb.current = current
	pb.render()
}

// Increment increments the progress by 1
func (pb *ProgressBar) Increment() {
	pb.current++
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	if pb.out != nil {
		fmt.Fprintln(pb.out)
	}
}

func (pb *ProgressBar) render() {
	if pb.out == nil || pb.total <= 0 {
		return
	}

	percentage := float64(pb.current) / float64(pb.total) * 100
	filled := int(float64(pb.width) * float64(pb.current) / float64(pb.total))
	if filled > pb.width {
		filled = pb.width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)

	var eta string
	if pb.showETA && pb.current > 0 && pb.current < pb.total {
		elapsed := time.Since(pb.startTime)
		totalTime := time.Duration(float64(elapsed) * float64(pb.total) / float64(pb.current))
		if remaining := totalTime - elapsed; remaining > 0 {
			eta = fmt.Sprintf(" ETA: %v", remaining.Round(time.Second))
		}
	}

	fmt.Fprintf(pb.out, "\r%s [%s] %.1f%% (%d/%d)%s",
		pb.description, bar, percentage, pb.current, pb.total, eta)
}

// ProgressWriter wraps an io.Writer to report download progress
type ProgressWriter struct {
	writer     io.Writer
	out        io.Writer
	total      int64
	written    int64
	lastUpdate time.Time
	startTime  time.Time
}

// NewProgressWriter creates a progress writer. Progress lines go to out; a nil
// out only counts bytes.
func NewProgressWriter(writer io.Writer, total int64, out io.Writer) *ProgressWriter {
	return &ProgressWriter{
		writer:     writer,
		out:        out,
		total:      total,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}
}

// Write implements io.Writer interface with progress reporting
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if err != nil {
		return n, err
	}

	if pw.out != nil && time.Since(pw.lastUpdate) > 500*time.Millisecond {
		pw.updateProgress()
		pw.lastUpdate = time.Now()
	}

	return n, nil
}

// Written returns the number of bytes written so far.
func (pw *ProgressWriter) Written() int64 {
	return pw.written
}

func (pw *ProgressWriter) updateProgress() {
	if pw.total <= 0 {
		fmt.Fprintf(pw.out, "\r%.1f MB", float64(pw.written)/(1024*1024))
		return
	}

	percentage := float64(pw.written) / float64(pw.total) * 100
	elapsed := time.Since(pw.startTime).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(pw.written) / elapsed
	}

	barWidth := 30
	filled := int(percentage * float64(barWidth) / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)

	fmt.Fprintf(pw.out, "\r[%s] %.1f%% (%.1f/%.1f MB) %.1f MB/s",
		bar, percentage,
		float64(pw.written)/(1024*1024), float64(pw.total)/(1024*1024), speed/(1024*1024))
}

// Finish completes the progress display
func (pw *ProgressWriter) Finish() {
	if pw.out == nil {
		return
	}
	elapsed := time.Since(pw.startTime)
	fmt.Fprintf(pw.out, "\rDownloaded %.1f MB in %v\n",
		float64(pw.written)/(1024*1024), elapsed.Round(time.Millisecond))
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
