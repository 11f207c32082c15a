package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MrWong99/speechgate/pkg/enhance"
)

var reportHeader = []string{
	"file", "output", "duration_s", "elapsed_ms",
	"decision", "bypass_reason", "snr_db", "strength", "strategy", "score",
	"keyword", "transcriber", "text_original", "text_enhanced",
	"match_a", "match_b", "match_c", "match_d", "match_method",
	"trace_id", "error",
}

// WriteReport writes one CSV row per result under a header row. Match
// columns are empty when the condition was not evaluated.
func WriteReport(w io.Writer, results []FileResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("batch: write report: %w", err)
	}
	for i := range results {
		if err := cw.Write(reportRow(&results[i])); err != nil {
			return fmt.Errorf("batch: write report: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("batch: write report: %w", err)
	}
	return nil
}

// WriteReportFile writes the report to path, creating parent directories.
func WriteReportFile(path string, results []FileResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("batch: create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("batch: create report: %w", err)
	}
	if err := WriteReport(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func reportRow(r *FileResult) []string {
	m := r.Matches
	var a, b, c, d, method string
	if m.Evaluated {
		if m.Original {
			a, b = boolCell(m.Baseline), boolCell(m.Token)
		}
		c, d, method = boolCell(m.Enhanced), boolCell(m.Combined), string(m.Method)
	}
	decision, reason, snr, score := "", "", "", ""
	if r.Processed {
		decision, reason = r.Decision.String(), r.BypassReason.String()
		if r.Decision != enhance.DecisionEmpty {
			snr = strconv.FormatFloat(r.SNR, 'f', 2, 64)
		}
	}
	if r.Strength != "" {
		score = strconv.FormatFloat(r.Score, 'f', 4, 64)
	}
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	return []string{
		r.Path, r.Output,
		strconv.FormatFloat(r.Duration.Seconds(), 'f', 3, 64),
		strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		decision, reason, snr, r.Strength, r.Strategy, score,
		r.Keyword, r.Transcriber, r.TextOriginal, r.TextEnhanced,
		a, b, c, d, method,
		r.TraceID, errText,
	}
}

func boolCell(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Summary aggregates a batch.
type Summary struct {
	Files    int
	Failed   int
	Skipped  int
	Enhanced int
	Bypassed int
	Fallback int
	Empty    int

	// Evaluated counts recordings with keyword judgements; Original counts
	// those where the original recording was also transcribed.
	Evaluated int
	Original  int

	// Accuracy per condition in percent. A and B are over Original, C and D
	// over Evaluated.
	AccuracyA float64
	AccuracyB float64
	AccuracyC float64
	AccuracyD float64

	Audio   time.Duration
	Elapsed time.Duration
}

// Summarize aggregates results.
func Summarize(results []FileResult) Summary {
	var s Summary
	var a, b, c, d int
	for i := range results {
		r := &results[i]
		s.Files++
		s.Audio += r.Duration
		s.Elapsed += r.Elapsed
		switch {
		case errors.Is(r.Err, ErrSkipped):
			s.Skipped++
			continue
		case r.Err != nil:
			s.Failed++
		}
		if !r.Processed {
			continue
		}
		switch r.Decision {
		case enhance.DecisionEnhanced:
			s.Enhanced++
		case enhance.DecisionBypassed:
			s.Bypassed++
		case enhance.DecisionFallback:
			s.Fallback++
		case enhance.DecisionEmpty:
			s.Empty++
		}
		m := r.Matches
		if !m.Evaluated {
			continue
		}
		s.Evaluated++
		c += count(m.Enhanced)
		d += count(m.Combined)
		if m.Original {
			s.Original++
			a += count(m.Baseline)
			b += count(m.Token)
		}
	}
	s.AccuracyA = percent(a, s.Original)
	s.AccuracyB = percent(b, s.Original)
	s.AccuracyC = percent(c, s.Evaluated)
	s.AccuracyD = percent(d, s.Evaluated)
	return s
}

func count(v bool) int {
	if v {
		return 1
	}
	return 0
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return 100 * float64(n) / float64(of)
}
