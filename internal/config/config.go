// Package config loads audio-digest settings from defaults, YAML files,
// .env files, environment variables and CLI flags.
package config

import (
	"time"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"

	SummaryOpenAI   = "openai"
	SummaryLlamaCpp = "llamacpp"

	// Window lengths used when transcription.segment_seconds is 0.
	defaultLocalSegmentSeconds  = 1800
	defaultRemoteSegmentSeconds = 120
)

var (
	Backends        = []string{BackendRemote, BackendLocal}
	SummaryBackends = []string{SummaryLlamaCpp, SummaryOpenAI}
	Devices         = []string{"auto", "cpu", "gpu"}
	WriteModes      = []string{"append", "fresh"}
	LogFormats      = []string{"text", "json"}
)

// Config is the complete runtime configuration for one CLI invocation.
type Config struct {
	Input         InputConfig         `yaml:"input" mapstructure:"input"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Summary       SummaryConfig       `yaml:"summary" mapstructure:"summary"`
	Tools         ToolsConfig         `yaml:"tools" mapstructure:"tools"`
	Ledger        LedgerConfig        `yaml:"ledger" mapstructure:"ledger"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`

	// ConfigFile is the YAML file that was merged, if any.
	ConfigFile string `yaml:"-" mapstructure:"-"`
}

type InputConfig struct {
	Dir        string   `yaml:"dir" mapstructure:"dir"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

type OutputConfig struct {
	TranscriptPath string `yaml:"transcript_path" mapstructure:"transcript_path"`
	SummaryPath    string `yaml:"summary_path" mapstructure:"summary_path"`
	// Mode is "append" (keep prior runs) or "fresh" (truncate first).
	Mode        string `yaml:"mode" mapstructure:"mode"`
	Incremental bool   `yaml:"incremental" mapstructure:"incremental"`
	Placeholder string `yaml:"placeholder" mapstructure:"placeholder"`
}

type TranscriptionConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Language string `yaml:"language" mapstructure:"language"`
	// SegmentSeconds is the window length; 0 picks the backend default.
	SegmentSeconds float64      `yaml:"segment_seconds" mapstructure:"segment_seconds"`
	SingleSegment  bool         `yaml:"single_segment" mapstructure:"single_segment"`
	MaxRepeats     int          `yaml:"max_repeats" mapstructure:"max_repeats"`
	PauseSeconds   float64      `yaml:"pause_seconds" mapstructure:"pause_seconds"`
	TimeoutSeconds float64      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Cache          bool         `yaml:"cache" mapstructure:"cache"`
	Remote         RemoteConfig `yaml:"remote" mapstructure:"remote"`
	Local          LocalConfig  `yaml:"local" mapstructure:"local"`
}

type RemoteConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

type LocalConfig struct {
	Binary string `yaml:"binary" mapstructure:"binary"`
	// Model is a model file, a directory of models, or a catalog id such as "large-v3-turbo".
	Model             string  `yaml:"model" mapstructure:"model"`
	ModelsDir         string  `yaml:"models_dir" mapstructure:"models_dir"`
	Device            string  `yaml:"device" mapstructure:"device"`
	Threads           int     `yaml:"threads" mapstructure:"threads"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	BestOf            int     `yaml:"best_of" mapstructure:"best_of"`
	BeamSize          int     `yaml:"beam_size" mapstructure:"beam_size"`
	NoSpeechThreshold float64 `yaml:"no_speech_threshold" mapstructure:"no_speech_threshold"`
	EntropyThreshold  float64 `yaml:"entropy_threshold" mapstructure:"entropy_threshold"`
	LogprobThreshold  float64 `yaml:"logprob_threshold" mapstructure:"logprob_threshold"`
}

type SummaryConfig struct {
	Backend         string         `yaml:"backend" mapstructure:"backend"`
	ChunkSize       int            `yaml:"chunk_size" mapstructure:"chunk_size"`
	Overlap         int            `yaml:"overlap" mapstructure:"overlap"`
	MapTemplate     string         `yaml:"map_template,omitempty" mapstructure:"map_template"`
	CombineTemplate string         `yaml:"combine_template,omitempty" mapstructure:"combine_template"`
	TimeoutSeconds  float64        `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	OpenAI          OpenAIConfig   `yaml:"openai" mapstructure:"openai"`
	LlamaCpp        LlamaCppConfig `yaml:"llamacpp" mapstructure:"llamacpp"`
}

type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

type LlamaCppConfig struct {
	Binary      string  `yaml:"binary" mapstructure:"binary"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	ContextSize int     `yaml:"context_size" mapstructure:"context_size"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	Threads     int     `yaml:"threads" mapstructure:"threads"`
}

type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	FFprobe string `yaml:"ffprobe" mapstructure:"ffprobe"`
}

type LedgerConfig struct {
	// Path of the sqlite database; empty disables history and caching.
	Path string `yaml:"path" mapstructure:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SegmentLength returns the effective window length in seconds.
func (c TranscriptionConfig) SegmentLength() float64 {
	if c.SegmentSeconds != 0 {
		return c.SegmentSeconds
	}
	if c.Backend == BackendLocal {
		return defaultLocalSegmentSeconds
	}
	return defaultRemoteSegmentSeconds
}

// Pause returns the delay between consecutive remote calls.
func (c TranscriptionConfig) Pause() time.Duration {
	if c.Backend != BackendRemote {
		return 0
	}
	return seconds(c.PauseSeconds)
}

// Timeout bounds one extraction or backend call.
func (c TranscriptionConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// Timeout bounds one model call.
func (c SummaryConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
