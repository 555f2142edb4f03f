package domain

// WhisperModel describes one downloadable whisper.cpp ggml model.
type WhisperModel struct {
	ID           string `json:"id" yaml:"id"`
	FileName     string `json:"fileName" yaml:"fileName"`
	URL          string `json:"url" yaml:"url"`
	SizeLabel    string `json:"sizeLabel,omitempty" yaml:"sizeLabel,omitempty"`
	Multilingual bool   `json:"multilingual" yaml:"multilingual"`
	Downloaded   bool   `json:"downloaded" yaml:"downloaded"`
	LocalPath    string `json:"localPath,omitempty" yaml:"localPath,omitempty"`
	// Checksum is the blake3 digest of a file fetched in this process.
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}
