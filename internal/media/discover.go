package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// DefaultExtensions lists the audio formats picked up from an input directory.
var DefaultExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".opus"}

// Discover lists audio files directly under dir, sorted by name.
func Discover(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := lo.Map(extensions, func(ext string, _ int) string {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return ext
	})

	files := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (string, bool) {
		if entry.IsDir() {
			return "", false
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		return filepath.Join(dir, entry.Name()), lo.Contains(allowed, ext)
	})
	sort.Strings(files)
	return files, nil
}

// IsAudioFile reports whether path has one of the given extensions.
func IsAudioFile(path string, extensions []string) bool {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	return lo.ContainsBy(extensions, func(candidate string) bool {
		return strings.EqualFold(strings.TrimPrefix(candidate, "."), strings.TrimPrefix(ext, "."))
	})
}
