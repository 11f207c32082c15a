package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/speechgate/internal/batch"
	"github.com/MrWong99/speechgate/internal/keyword"
	"github.com/MrWong99/speechgate/internal/resilience"
	"github.com/MrWong99/speechgate/pkg/audio"
	"github.com/MrWong99/speechgate/pkg/enhance"
	"github.com/MrWong99/speechgate/pkg/provider/stt"
	sttmock "github.com/MrWong99/speechgate/pkg/provider/stt/mock"
)

type fixture struct {
	noisy, clean, broken string
	outDir               string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		noisy:  writeWAV(t, dir, "noisy.wav", recording(0.1, 1)),
		clean:  writeWAV(t, dir, "clean.wav", recording(0, 1)),
		broken: filepath.Join(dir, "broken.wav"),
		outDir: filepath.Join(dir, "out"),
	}
	if err := os.WriteFile(f.broken, []byte("not a wav file"), 0o644); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	metrics, reader := newTestMetrics(t)

	primary := &sttmock.Transcriber{TranscribeErr: errors.New("server down")}
	backup := &sttmock.Transcriber{Result: stt.Transcript{Text: "주민등록 등본 발급해 주세요"}}
	chain := resilience.NewTranscriberChain()
	chain.Add("server", primary, resilience.BreakerConfig{Name: "server", MaxFailures: 100})
	chain.Add("native", backup, resilience.BreakerConfig{Name: "native"})

	truth := keyword.GroundTruth{"noisy": "등본", "clean": "가족관계증명서", "broken": "등본"}
	r := batch.New(newEnhancer(t), batch.Options{
		Workers:            2,
		OutputDir:          f.outDir,
		WriteAudio:         true,
		TranscribeOriginal: true,
		Language:           "ko",
	},
		batch.WithTranscriber(chain),
		batch.WithEvaluation(keyword.New(), truth),
		batch.WithMetrics(metrics),
	)

	results, err := r.Run(context.Background(), []string{f.noisy, f.clean, f.broken})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	noisy, clean, broken := results[0], results[1], results[2]

	if noisy.Err != nil || noisy.Decision != enhance.DecisionEnhanced {
		t.Fatalf("noisy: decision %v err %v", noisy.Decision, noisy.Err)
	}
	if noisy.Strength == "" || noisy.Strategy == "" {
		t.Errorf("noisy: strength %q strategy %q, want both set", noisy.Strength, noisy.Strategy)
	}
	if noisy.Output != batch.OutputPath(f.outDir, f.noisy) {
		t.Errorf("noisy: output %q", noisy.Output)
	}
	out, err := audio.ReadWAVFile(noisy.Output)
	if err != nil {
		t.Fatalf("read enhanced output: %v", err)
	}
	if out.SampleRate != testRate || out.Empty() {
		t.Errorf("enhanced output: rate %d, %d samples", out.SampleRate, len(out.Samples))
	}
	if noisy.Transcriber != "native" {
		t.Errorf("noisy: transcriber %q, want native", noisy.Transcriber)
	}
	want := batch.Matches{
		Evaluated: true, Original: true,
		Baseline: true, Token: true, Enhanced: true, Combined: true,
		Method: keyword.MethodToken,
	}
	if noisy.Matches != want {
		t.Errorf("noisy: matches %+v, want %+v", noisy.Matches, want)
	}

	if clean.Err != nil || clean.Decision != enhance.DecisionBypassed {
		t.Fatalf("clean: decision %v err %v", clean.Decision, clean.Err)
	}
	if clean.BypassReason != enhance.BypassClean {
		t.Errorf("clean: reason %v, want clean", clean.BypassReason)
	}
	if clean.Matches.Combined || clean.Matches.Baseline || clean.Matches.Method != keyword.MethodNone {
		t.Errorf("clean: matches %+v, want none", clean.Matches)
	}

	if broken.Err == nil || broken.Processed {
		t.Errorf("broken: err %v processed %v, want a decode failure", broken.Err, broken.Processed)
	}
	if broken.Matches.Evaluated {
		t.Error("broken: evaluated without a transcript")
	}

	// Two transcripts per decodable recording, all answered by the backup.
	if got := backup.CallCount(); got != 4 {
		t.Errorf("backup calls = %d, want 4", got)
	}
	if got := counterTotal(t, reader, "speechgate.batch.files"); got != 3 {
		t.Errorf("files counter = %d, want 3", got)
	}
	if got := counterTotal(t, reader, "speechgate.enhance.decisions"); got != 2 {
		t.Errorf("decisions counter = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "speechgate.batch.active_files"); got != 0 {
		t.Errorf("active files = %d, want 0", got)
	}

	s := batch.Summarize(results)
	if s.Files != 3 || s.Failed != 1 || s.Enhanced != 1 || s.Bypassed != 1 {
		t.Errorf("summary counts = %+v", s)
	}
	if s.Evaluated != 2 || s.Original != 2 {
		t.Errorf("summary evaluated %d original %d, want 2 and 2", s.Evaluated, s.Original)
	}
	for name, got := range map[string]float64{"A": s.AccuracyA, "B": s.AccuracyB, "C": s.AccuracyC, "D": s.AccuracyD} {
		if got != 50 {
			t.Errorf("accuracy %s = %.1f, want 50", name, got)
		}
	}
}

func TestRunner_EnhancedOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	metrics, _ := newTestMetrics(t)

	tr := &sttmock.Transcriber{TranscribeFunc: func(_ context.Context, req stt.Request) (stt.Transcript, error) {
		if req.Language != "" {
			t.Errorf("language = %q, want empty", req.Language)
		}
		return stt.Transcript{Text: "등본 발급"}, nil
	}}
	chain := resilience.NewTranscriberChain()
	chain.Add("only", tr, resilience.BreakerConfig{})

	r := batch.New(newEnhancer(t), batch.Options{Workers: 1},
		batch.WithTranscriber(chain),
		batch.WithEvaluation(keyword.New(), keyword.GroundTruth{"noisy": "등본"}),
		batch.WithMetrics(metrics),
	)
	res := r.Process(context.Background(), f.noisy)
	if res.Err != nil {
		t.Fatalf("Process: %v", res.Err)
	}
	if res.Output != "" {
		t.Errorf("output %q written without WriteAudio", res.Output)
	}
	if tr.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", tr.CallCount())
	}
	m := res.Matches
	if !m.Evaluated || m.Original || !m.Enhanced || !m.Combined {
		t.Errorf("matches = %+v", m)
	}
	if res.TextOriginal != "" {
		t.Errorf("original text %q, want empty", res.TextOriginal)
	}
}

func TestRunner_TranscriptionFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	metrics, _ := newTestMetrics(t)

	chain := resilience.NewTranscriberChain()
	chain.Add("down", &sttmock.Transcriber{TranscribeErr: errors.New("boom")}, resilience.BreakerConfig{})

	r := batch.New(newEnhancer(t), batch.Options{},
		batch.WithTranscriber(chain),
		batch.WithEvaluation(keyword.New(), keyword.GroundTruth{"noisy": "등본"}),
		batch.WithMetrics(metrics),
	)
	res := r.Process(context.Background(), f.noisy)
	if res.Err == nil {
		t.Fatal("expected transcription error")
	}
	if !res.Processed || res.Decision != enhance.DecisionEnhanced {
		t.Errorf("enhancement result lost: processed %v decision %v", res.Processed, res.Decision)
	}
	if res.Matches.Evaluated {
		t.Error("evaluated despite failed transcription")
	}
}

func TestRunner_NoEvaluationWithoutGroundTruth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	metrics, _ := newTestMetrics(t)
	chain := resilience.NewTranscriberChain()
	chain.Add("only", &sttmock.Transcriber{Result: stt.Transcript{Text: "hello"}}, resilience.BreakerConfig{})

	r := batch.New(newEnhancer(t), batch.Options{},
		batch.WithTranscriber(chain),
		batch.WithEvaluation(keyword.New(), keyword.GroundTruth{"other": "x"}),
		batch.WithMetrics(metrics),
	)
	res := r.Process(context.Background(), f.noisy)
	if res.Err != nil {
		t.Fatalf("Process: %v", res.Err)
	}
	if res.Keyword != "" || res.Matches.Evaluated {
		t.Errorf("keyword %q evaluated %v, want neither", res.Keyword, res.Matches.Evaluated)
	}
	if res.TextEnhanced != "hello" {
		t.Errorf("enhanced text %q", res.TextEnhanced)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	metrics, _ := newTestMetrics(t)
	r := batch.New(newEnhancer(t), batch.Options{Workers: 1}, batch.WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := r.Run(ctx, []string{f.noisy, f.clean})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	for _, res := range results {
		if !errors.Is(res.Err, batch.ErrSkipped) {
			t.Errorf("%s: err %v, want ErrSkipped", res.Path, res.Err)
		}
	}
	if s := batch.Summarize(results); s.Skipped != 2 || s.Failed != 0 {
		t.Errorf("summary = %+v", s)
	}
}
