package config

import (
	"os"
	"path/filepath"
)

// HomeDir is the per-user directory for models, config and .env.
func HomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".audio-digest")
}

// DefaultConfig returns the baseline configuration used before any file,
// environment variable or flag is applied.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Dir:        "audios",
			Extensions: []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".opus"},
		},
		Output: OutputConfig{
			TranscriptPath: filepath.Join("texto", "texto_gerado.md"),
			SummaryPath:    filepath.Join("texto", "resumo_final.md"),
			Mode:           "append",
			Incremental:    true,
			Placeholder:    "[ERRO NA TRANSCRIÇÃO DESTE TRECHO]",
		},
		Transcription: TranscriptionConfig{
			Backend:        BackendRemote,
			Language:       "pt",
			MaxRepeats:     2,
			PauseSeconds:   1,
			TimeoutSeconds: 600,
			Cache:          true,
			Remote: RemoteConfig{
				BaseURL: "https://api.groq.com/openai/v1",
				Model:   "whisper-large-v3-turbo",
			},
			Local: LocalConfig{
				Binary:            "whisper-cli",
				Model:             "large-v3-turbo",
				ModelsDir:         filepath.Join(HomeDir(), "models"),
				Device:            "auto",
				Temperature:       0.2,
				BestOf:            2,
				BeamSize:          2,
				NoSpeechThreshold: 0.6,
				EntropyThreshold:  2.4,
				LogprobThreshold:  -1.0,
			},
		},
		Summary: SummaryConfig{
			Backend:        SummaryLlamaCpp,
			ChunkSize:      3000,
			Overlap:        200,
			TimeoutSeconds: 1800,
			OpenAI: OpenAIConfig{
				BaseURL:     "http://localhost:8080/v1",
				Model:       "mistral-7b-instruct",
				Temperature: 0.1,
				MaxTokens:   1024,
			},
			LlamaCpp: LlamaCppConfig{
				Binary:      "llama-cli",
				Model:       filepath.Join("model", "mistral-7b-instruct-v0.2.Q5_K_M.gguf"),
				MaxTokens:   1024,
				ContextSize: 4096,
				Temperature: 0.1,
			},
		},
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(".digest", "state.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
