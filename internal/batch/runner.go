// Package batch runs the enhancement engine over a set of recordings.
//
// Each recording is decoded, enhanced, optionally written back to disk,
// optionally transcribed (the original and the enhanced rendition) and, when
// ground truth is available, scored for its expected keyword under four
// conditions:
//
//	A  baseline substring match on the original transcript
//	B  lenient token match on the original transcript
//	C  baseline substring match on the enhanced transcript
//	D  lenient token match on the union of both transcripts' tokens
//
// A failing recording never stops the batch; its error is kept in its
// [FileResult].
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/speechgate/internal/keyword"
	"github.com/MrWong99/speechgate/internal/observe"
	"github.com/MrWong99/speechgate/pkg/audio"
	"github.com/MrWong99/speechgate/pkg/enhance"
	"github.com/MrWong99/speechgate/pkg/provider/stt"
)

// ErrSkipped marks recordings left unprocessed because the run was cancelled.
var ErrSkipped = errors.New("batch: not processed")

// Transcriber recognizes a recording and reports which backend answered.
// [*resilience.TranscriberChain] implements it.
type Transcriber interface {
	TranscribeNamed(ctx context.Context, req stt.Request) (stt.Transcript, string, error)
}

// Options controls a [Runner].
type Options struct {
	// Workers bounds the number of recordings processed concurrently. Zero
	// or less means GOMAXPROCS.
	Workers int

	// OutputDir receives <stem>_enhanced.wav when WriteAudio is set.
	OutputDir  string
	WriteAudio bool

	// TranscribeOriginal also transcribes the unprocessed recording.
	TranscribeOriginal bool

	// Language is passed to the transcriber.
	Language string
}

// Option is a functional option for configuring a [Runner].
type Option func(*Runner)

// WithTranscriber enables transcription.
func WithTranscriber(t Transcriber) Option {
	return func(r *Runner) { r.transcriber = t }
}

// WithEvaluation enables keyword scoring against truth.
func WithEvaluation(m *keyword.Matcher, truth keyword.GroundTruth) Option {
	return func(r *Runner) {
		r.matcher = m
		r.truth = truth
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// Runner processes recordings with a shared [enhance.Enhancer]. It is safe
// for concurrent use.
type Runner struct {
	enh         *enhance.Enhancer
	opts        Options
	transcriber Transcriber
	matcher     *keyword.Matcher
	truth       keyword.GroundTruth
	metrics     *observe.Metrics
}

// New returns a Runner.
func New(enh *enhance.Enhancer, opts Options, options ...Option) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	r := &Runner{enh: enh, opts: opts}
	for _, o := range options {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Matches holds the keyword judgements for one recording.
type Matches struct {
	// Evaluated is false when no keyword was known for the recording or
	// nothing was transcribed.
	Evaluated bool
	// Original is false when the original recording was not transcribed;
	// Baseline and Token are then meaningless.
	Original bool

	Baseline bool // A
	Token    bool // B
	Enhanced bool // C
	Combined bool // D

	// Method is how condition D matched.
	Method keyword.Method
}

// FileResult is the outcome for one recording.
type FileResult struct {
	Path   string
	Output string

	// Duration is the length of the decoded input.
	Duration time.Duration
	Elapsed  time.Duration

	// Processed is set once enhancement succeeded; the enhancement fields
	// below are only meaningful then.
	Processed    bool
	Decision     enhance.Decision
	BypassReason enhance.BypassReason
	SNR          float64
	Strength     string
	Strategy     string
	Score        float64

	Keyword      string
	Transcriber  string
	TextOriginal string
	TextEnhanced string
	Matches      Matches

	TraceID string
	Err     error
}

// Failed reports whether processing stopped with an error.
func (f *FileResult) Failed() bool { return f.Err != nil }

// Run processes paths and returns one result per path, in the same order.
// The returned error is non-nil only when ctx was cancelled; per-file
// failures are reported in the results.
func (r *Runner) Run(ctx context.Context, paths []string) ([]FileResult, error) {
	if r.opts.WriteAudio {
		if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("batch: create output dir: %w", err)
		}
	}

	results := make([]FileResult, len(paths))
	for i, p := range paths {
		results[i] = FileResult{Path: p, Err: ErrSkipped}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.Process(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Process handles a single recording.
func (r *Runner) Process(ctx context.Context, path string) (res FileResult) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "batch.file",
		trace.WithAttributes(attribute.String("file", path)))
	res = FileResult{Path: path, TraceID: observe.CorrelationID(ctx)}

	r.metrics.ActiveFiles.Add(ctx, 1)
	defer func() {
		r.metrics.ActiveFiles.Add(ctx, -1)
		res.Elapsed = time.Since(start)
		status := "ok"
		if res.Err != nil {
			status = "failed"
			observe.Logger(ctx).Error("recording failed", "file", path, "err", res.Err)
		}
		r.metrics.RecordFile(ctx, status)
		if res.Processed {
			span.SetAttributes(attribute.String("decision", res.Decision.String()))
		}
		observe.EndSpan(span, res.Err)
	}()

	in, err := audio.ReadWAVFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Duration = in.Duration()

	enhStart := time.Now()
	out, err := r.enh.Enhance(ctx, in)
	if err != nil {
		res.Err = fmt.Errorf("batch: enhance: %w", err)
		return res
	}
	r.metrics.RecordEnhance(ctx, out, time.Since(enhStart))
	res.Processed = true
	res.Decision = out.Decision
	res.BypassReason = out.BypassReason
	res.SNR = out.SNR
	if c, ok := out.SelectedCandidate(); ok {
		res.Strength = c.Strength.String()
		res.Strategy = c.Strategy
		res.Score = c.Score.Total
	}

	if r.opts.WriteAudio && !out.Audio.Empty() {
		dst := OutputPath(r.opts.OutputDir, path)
		if err := audio.WriteWAVFile(dst, out.Audio); err != nil {
			res.Err = err
			return res
		}
		res.Output = dst
	}

	observe.Logger(ctx).Info("recording enhanced",
		"file", path,
		"decision", out.Decision.String(),
		"reason", out.BypassReason.String(),
		"snr_db", out.SNR,
		"strength", res.Strength,
	)

	if r.transcriber == nil {
		return res
	}
	res.Err = r.transcribe(ctx, in, out, &res)
	if res.Err == nil {
		r.evaluate(ctx, &res)
	}
	return res
}

// transcribe fills the transcript fields of res.
func (r *Runner) transcribe(ctx context.Context, in audio.Buffer, out *enhance.Result, res *FileResult) error {
	var errs []error
	if r.opts.TranscribeOriginal {
		text, name, err := r.transcribeOne(ctx, in, "original")
		if err != nil {
			errs = append(errs, fmt.Errorf("batch: transcribe original: %w", err))
		}
		res.TextOriginal, res.Transcriber = text, name
		res.Matches.Original = err == nil
	}

	// An empty enhancement result leaves nothing new to recognize.
	if out.Audio.Empty() {
		res.TextEnhanced = res.TextOriginal
		return errors.Join(errs...)
	}
	text, name, err := r.transcribeOne(ctx, out.Audio, "enhanced")
	if err != nil {
		errs = append(errs, fmt.Errorf("batch: transcribe enhanced: %w", err))
	}
	res.TextEnhanced = text
	if name != "" {
		res.Transcriber = name
	}
	return errors.Join(errs...)
}

func (r *Runner) transcribeOne(ctx context.Context, buf audio.Buffer, variant string) (string, string, error) {
	ctx, span := observe.StartSpan(ctx, "batch.transcribe",
		trace.WithAttributes(attribute.String("variant", variant)))
	start := time.Now()
	tr, name, err := r.transcriber.TranscribeNamed(ctx, stt.Request{Audio: buf, Language: r.opts.Language})
	r.metrics.RecordTranscribe(ctx, name, variant, time.Since(start), err)
	span.SetAttributes(attribute.String("provider", name))
	observe.EndSpan(span, err)
	return tr.Text, name, err
}

// evaluate scores the transcripts in res against the expected keyword.
func (r *Runner) evaluate(ctx context.Context, res *FileResult) {
	if r.matcher == nil {
		return
	}
	kw, ok := r.truth.Lookup(res.Path)
	if !ok {
		observe.Logger(ctx).Warn("no ground truth for recording", "file", res.Path)
		return
	}
	res.Keyword = kw
	m := &res.Matches
	m.Evaluated = true

	tokens := keyword.Tokenize(res.TextEnhanced)
	if m.Original {
		m.Baseline = keyword.Contains(res.TextOriginal, kw)
		m.Token = r.matcher.Match(res.TextOriginal, kw).Matched
		tokens = unionTokens(keyword.Tokenize(res.TextOriginal), tokens)
		r.metrics.RecordKeywordMatch(ctx, "original", matchLabel(m.Baseline, m.Token))
	}
	m.Enhanced = keyword.Contains(res.TextEnhanced, kw)
	d := r.matcher.MatchTokens(tokens, res.TextEnhanced, kw)
	m.Combined = d.Matched
	m.Method = d.Method
	r.metrics.RecordKeywordMatch(ctx, "enhanced", string(d.Method))
}

func unionTokens(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range slices.Concat(a, b) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func matchLabel(baseline, token bool) string {
	switch {
	case baseline:
		return "baseline"
	case token:
		return string(keyword.MethodToken)
	default:
		return string(keyword.MethodNone)
	}
}
