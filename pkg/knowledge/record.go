package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// SaveAnswer writes a as indented JSON to a timestamped file in dir and
// returns the path written.
func SaveAnswer(dir string, a *Answer) (string, error) {
	if a == nil {
		return "", errors.New("answer is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	payload, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding answer: %w", err)
	}

	base := "answer_" + a.Timestamp.Local().Format("20060102_150405")
	for n := 0; ; n++ {
		name := base + ".json"
		if n > 0 {
			name = base + "_" + strconv.Itoa(n) + ".json"
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating %s: %w", name, err)
		}

		if _, err := f.Write(payload); err != nil {
			f.Close()
			return "", fmt.Errorf("writing %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("closing %s: %w", name, err)
		}
		return path, nil
	}
}
