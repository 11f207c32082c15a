package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/speechgate/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"log level", "log_level: verbose\n", "log_level"},
		{"silero without model", "vad:\n  name: silero\n", "vad.model_path"},
		{"strategy without name", "denoise:\n  strategies:\n    - kind: spectral\n", "denoise.strategies[0].name"},
		{"strategy kind", "denoise:\n  strategies:\n    - name: a\n      kind: wiener\n", "kind"},
		{"strategy duplicate", "denoise:\n  strategies:\n    - {name: a, kind: spectral}\n    - {name: a, kind: subtract}\n", "duplicate"},
		{"strategy negative", "denoise:\n  strategies:\n    - {name: a, kind: spectral, n_std: -1}\n", "negative"},
		{"strategy hop", "denoise:\n  strategies:\n    - {name: a, kind: spectral, fft_size: 256, hop: 512}\n", "hop"},
		{"transcriber without name", "transcribers:\n  - base_url: http://x\n", "transcribers[0].name"},
		{"whisper without url", "transcribers:\n  - name: whisper\n", "base_url"},
		{"native without model", "transcribers:\n  - name: whisper-native\n", "model_path"},
		{"duplicate labels", "transcribers:\n  - {name: whisper, base_url: http://a}\n  - {name: whisper, base_url: http://b}\n", "label"},
		{"breaker negative", "transcriber_breaker:\n  max_failures: -1\n", "transcriber_breaker"},
		{"workers negative", "batch:\n  workers: -2\n", "batch.workers"},
		{"output dir", "batch:\n  output_dir: \"\"\n", "batch.output_dir"},
		{"threshold range", "evaluation:\n  min_token_recall: 1.5\n", "min_token_recall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"labelled duplicates", "transcribers:\n  - {name: whisper, base_url: http://a}\n  - {name: whisper, label: backup, base_url: http://b}\n"},
		{"energy vad", "enhance:\n  vad_variant: energy\nvad:\n  name: energy\n"},
		{"no audio output", "batch:\n  write_audio: false\n  output_dir: \"\"\n"},
		{"third-party transcriber", "transcribers:\n  - name: custom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := config.LoadFromReader(strings.NewReader(tt.yaml)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: loud
enhance:
  target_channels: 2
transcribers:
  - name: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "target_channels", "base_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if !slices.Contains(config.ValidProviderNames["vad"], "silero") {
		t.Error(`ValidProviderNames["vad"] should contain "silero"`)
	}
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper-native") {
		t.Error(`ValidProviderNames["stt"] should contain "whisper-native"`)
	}
}
