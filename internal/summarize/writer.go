package summarize

import (
	"fmt"
	"os"
	"path/filepath"

	"audio-digest/internal/domain"
)

// DocumentTitle heads the summary file.
const DocumentTitle = "# Resumo da Transcrição"

// Write replaces the summary file at path and verifies it is non-empty.
func Write(path string, summary domain.FinalSummary) (domain.FinalSummary, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return summary, fmt.Errorf("create summary directory: %w", err)
	}

	content := DocumentTitle + "\n\n" + summary.Text + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return summary, fmt.Errorf("write summary: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return summary, fmt.Errorf("stat summary: %w", err)
	}
	if info.Size() == 0 {
		return summary, fmt.Errorf("summary file is empty: %s", path)
	}

	summary.Path = path
	return summary, nil
}
