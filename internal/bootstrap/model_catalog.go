package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"audio-digest/internal/config"
	"audio-digest/internal/domain"
	"audio-digest/internal/media"
)

const (
	modelBaseURL         = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"
	modelDownloadTimeout = 45 * time.Minute
)

var whisperModelCatalog = []domain.WhisperModel{
	catalogEntry("tiny.en", "~75 MB"),
	catalogEntry("tiny", "~75 MB"),
	catalogEntry("base.en", "~142 MB"),
	catalogEntry("base", "~142 MB"),
	catalogEntry("small.en", "~466 MB"),
	catalogEntry("small", "~466 MB"),
	catalogEntry("medium.en", "~1.5 GB"),
	catalogEntry("medium", "~1.5 GB"),
	catalogEntry("large-v2", "~2.9 GB"),
	catalogEntry("large-v3", "~2.9 GB"),
	catalogEntry("large-v3-turbo", "~1.6 GB"),
}

func catalogEntry(id, size string) domain.WhisperModel {
	file := "ggml-" + id + ".bin"
	return domain.WhisperModel{
		ID:           id,
		FileName:     file,
		URL:          modelBaseURL + file,
		SizeLabel:    size,
		Multilingual: !strings.HasSuffix(id, ".en"),
	}
}

// WhisperModels returns the whisper.cpp catalog with local availability marked.
func WhisperModels(local config.LocalConfig) []domain.WhisperModel {
	models := make([]domain.WhisperModel, len(whisperModelCatalog))
	copy(models, whisperModelCatalog)
	markDownloadedModels(models, resolveKnownModelDirs(local))
	return models
}

// DownloadWhisperModel fetches one catalog model into models_dir.
func DownloadWhisperModel(ctx context.Context, local config.LocalConfig, modelID string) (domain.WhisperModel, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.WhisperModel{}, domain.ConfigError("models", "model id is required", nil)
	}

	model, found := getWhisperModelByID(id)
	if !found {
		return domain.WhisperModel{}, domain.ConfigError("models", fmt.Sprintf("unknown model id: %s", id), nil)
	}

	downloadDir, err := resolveModelDownloadDirectory(local.ModelsDir)
	if err != nil {
		return domain.WhisperModel{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, modelDownloadTimeout)
	defer cancel()

	targetPath := filepath.Join(downloadDir, model.FileName)
	digest, err := downloadURLToFile(ctx, http.DefaultClient, targetPath, model.URL)
	if err != nil {
		return domain.WhisperModel{}, fmt.Errorf("download model %s: %w", model.ID, err)
	}

	model.Downloaded = true
	model.LocalPath = targetPath
	model.Checksum = digest
	return model, nil
}

// ResolveWhisperModel maps transcription.local.model to a filesystem path.
// A catalog id that is not also an existing path resolves inside models_dir.
func ResolveWhisperModel(local config.LocalConfig) string {
	raw := strings.TrimSpace(local.Model)
	if raw == "" {
		return ""
	}
	if _, err := os.Stat(raw); err == nil {
		return raw
	}
	if model, found := getWhisperModelByID(raw); found {
		return filepath.Join(local.ModelsDir, model.FileName)
	}
	return raw
}

func getWhisperModelByID(id string) (domain.WhisperModel, bool) {
	return lo.Find(whisperModelCatalog, func(m domain.WhisperModel) bool {
		return m.ID == id
	})
}

// resolveModelDownloadDirectory picks where downloads land. An empty
// models_dir means the app home; a path to a model file means its folder.
func resolveModelDownloadDirectory(modelsDir string) (string, error) {
	dir := strings.TrimSpace(modelsDir)
	if dir == "" {
		return filepath.Join(config.HomeDir(), "models"), nil
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return dir, nil
	case err != nil:
		return "", fmt.Errorf("stat models dir: %w", err)
	case info.IsDir():
		return dir, nil
	case isModelFileName(dir):
		return filepath.Dir(dir), nil
	default:
		return "", domain.ConfigError("models", fmt.Sprintf("models_dir is a file, not a directory: %s", dir), nil)
	}
}

func isModelFileName(name string) bool {
	return lo.Contains([]string{".bin", ".gguf"}, strings.ToLower(filepath.Ext(name)))
}

// resolveKnownModelDirs lists models_dir and the folder of the configured model.
func resolveKnownModelDirs(local config.LocalConfig) []string {
	dirs := []string{local.ModelsDir}
	if model := strings.TrimSpace(local.Model); model != "" {
		if info, err := os.Stat(model); err == nil {
			dirs = append(dirs, lo.Ternary(info.IsDir(), model, filepath.Dir(model)))
		}
	}

	dirs = lo.FilterMap(dirs, func(d string, _ int) (string, bool) {
		d = strings.TrimSpace(d)
		return filepath.Clean(d), d != ""
	})
	return lo.Uniq(dirs)
}

func markDownloadedModels(models []domain.WhisperModel, modelDirs []string) {
	for i := range models {
		for _, dir := range modelDirs {
			candidate := filepath.Join(dir, models[i].FileName)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				models[i].Downloaded, models[i].LocalPath = true, candidate
				break
			}
		}
	}
}

// downloadURLToFile streams url into a temp file beside dest, renames it
// into place once complete and returns the blake3 digest of the body.
func downloadURLToFile(ctx context.Context, client *http.Client, dest, url string) (string, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "audio-digest")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	counter := &countingWriter{w: tmp}
	digest, err := media.HashReader(io.TeeReader(resp.Body, counter))
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if resp.ContentLength >= 0 && counter.n != resp.ContentLength {
		return "", fmt.Errorf("download %s: got %d of %d bytes", url, counter.n, resp.ContentLength)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	committed = true
	return digest, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
