package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// enhancedSuffix marks files written by the runner. They are skipped when
// listing inputs so a directory can be processed in place.
const enhancedSuffix = "_enhanced"

// ListInputs returns the WAV recordings at path: path itself when it is a
// file, otherwise every .wav file below it in lexical order.
func ListInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".wav") {
			return nil
		}
		if strings.HasSuffix(strings.TrimSuffix(d.Name(), filepath.Ext(p)), enhancedSuffix) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: list %s: %w", path, err)
	}
	slices.Sort(files)
	return files, nil
}

// OutputPath returns where the enhanced rendition of input is written.
func OutputPath(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+enhancedSuffix+".wav")
}
