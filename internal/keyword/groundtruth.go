package keyword

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
)

// ErrNoGroundTruth is returned when a ground-truth table yields no usable
// rows.
var ErrNoGroundTruth = errors.New("keyword: no ground truth rows")

var (
	keywordColumns = []string{"keyword", "label", "answer", "text", "phrase", "utterance",
		"키워드", "정답", "문구", "문장", "대사", "텍스트", "내용", "종류"}
	fileColumns = []string{"file", "filename", "filepath", "path", "audio", "wav", "mp3",
		"파일", "파일명", "경로", "음성", "오디오", "파일경로"}
)

// GroundTruth maps a recording's file stem (base name without extension) to
// its expected keyword.
type GroundTruth map[string]string

// Lookup returns the keyword for path, matched by file stem.
func (g GroundTruth) Lookup(path string) (string, bool) {
	k, ok := g[Stem(path)]
	return k, ok
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GroundTruthOptions selects the CSV columns. Empty or absent column names
// fall back to well-known header names.
type GroundTruthOptions struct {
	FileColumn    string
	KeywordColumn string
	// Files are the recordings being evaluated. They are only consulted when
	// the table has no file column: each file is then assigned the longest
	// keyword contained in its normalized path.
	Files []string
}

// LoadGroundTruthFile reads the CSV table at path. See [LoadGroundTruth].
func LoadGroundTruthFile(path string, opts GroundTruthOptions) (GroundTruth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyword: read ground truth: %w", err)
	}
	gt, err := LoadGroundTruth(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return gt, nil
}

// LoadGroundTruth parses a CSV table with a header row. Input that is not
// valid UTF-8 is decoded as EUC-KR (CP949); a UTF-8 byte order mark is
// ignored.
func LoadGroundTruth(r io.Reader, opts GroundTruthOptions) (GroundTruth, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("keyword: read ground truth: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		if data, err = korean.EUCKR.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("keyword: decode ground truth: %w", err)
		}
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("keyword: parse ground truth: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrNoGroundTruth
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	kwCol := pickColumn(header, opts.KeywordColumn, keywordColumns)
	if kwCol < 0 {
		return nil, fmt.Errorf("keyword: no keyword column in header %v", header)
	}
	fileCol := pickColumn(header, opts.FileColumn, fileColumns)

	gt := make(GroundTruth)
	if fileCol >= 0 {
		for _, row := range rows[1:] {
			f, k := field(row, fileCol), field(row, kwCol)
			if f != "" && k != "" {
				gt[Stem(f)] = k
			}
		}
	} else {
		mapByContainment(gt, rows[1:], kwCol, opts.Files)
	}
	if len(gt) == 0 {
		return nil, ErrNoGroundTruth
	}
	return gt, nil
}

func pickColumn(header []string, hint string, fallbacks []string) int {
	if hint != "" {
		if i := slices.Index(header, hint); i >= 0 {
			return i
		}
	}
	for _, name := range fallbacks {
		if i := slices.Index(header, name); i >= 0 {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func mapByContainment(gt GroundTruth, rows [][]string, kwCol int, files []string) {
	type cand struct{ orig, norm string }
	var cands []cand
	for _, row := range rows {
		k := field(row, kwCol)
		if n := Normalize(k); n != "" {
			cands = append(cands, cand{k, n})
		}
	}
	for _, f := range files {
		hay := Normalize(Stem(f)) + Normalize(filepath.Dir(f))
		best := cand{}
		for _, c := range cands {
			if strings.Contains(hay, c.norm) && len([]rune(c.norm)) > len([]rune(best.norm)) {
				best = c
			}
		}
		if best.orig != "" {
			gt[Stem(f)] = best.orig
		}
	}
}
