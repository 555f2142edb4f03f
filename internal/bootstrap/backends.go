package bootstrap

import (
	"github.com/sirupsen/logrus"

	"audio-digest/internal/config"
	"audio-digest/internal/ledger"
	"audio-digest/internal/media"
	"audio-digest/internal/summarize"
	"audio-digest/internal/transcribe"
)

// newTranscriber builds the configured speech-to-text backend.
// modelPath is the resolved local whisper model.
func newTranscriber(cfg config.Config, modelPath string) transcribe.Transcriber {
	tc := cfg.Transcription
	if tc.Backend == config.BackendLocal {
		return transcribe.NewLocalTranscriber(transcribe.LocalOptions{
			BinaryPath:        tc.Local.Binary,
			ModelPath:         modelPath,
			Language:          tc.Language,
			Device:            tc.Local.Device,
			Threads:           tc.Local.Threads,
			Temperature:       tc.Local.Temperature,
			BestOf:            tc.Local.BestOf,
			BeamSize:          tc.Local.BeamSize,
			NoSpeechThreshold: tc.Local.NoSpeechThreshold,
			EntropyThreshold:  tc.Local.EntropyThreshold,
			LogprobThreshold:  tc.Local.LogprobThreshold,
		})
	}
	return transcribe.NewRemoteTranscriber(transcribe.RemoteOptions{
		BaseURL:     tc.Remote.BaseURL,
		APIKey:      tc.Remote.APIKey,
		Model:       tc.Remote.Model,
		Language:    tc.Language,
		Temperature: tc.Remote.Temperature,
	})
}

// newPipeline wires prober, extractor, backend, ledger and transcript writer.
// store may be nil, which disables both history and the window cache.
func newPipeline(cfg config.Config, modelPath string, writer transcribe.Writer, store *ledger.SQLiteLedger, logger logrus.FieldLogger) *transcribe.Pipeline {
	var (
		cache    transcribe.Cache
		recorder transcribe.Recorder
	)
	if store != nil {
		recorder = store
		if cfg.Transcription.Cache {
			cache = store
		}
	}

	segments := transcribe.NewSegmentTranscriber(
		media.NewExtractor(cfg.Tools.FFmpeg),
		newTranscriber(cfg, modelPath),
		cache,
		transcribe.SegmentOptions{
			MaxRepeats: cfg.Transcription.MaxRepeats,
			Timeout:    cfg.Transcription.Timeout(),
		},
		logger,
	)
	return transcribe.NewPipeline(media.NewProber(cfg.Tools.FFprobe), segments, writer, recorder, logger)
}

// newSummaryModel builds the configured language model backend.
func newSummaryModel(cfg config.Config, logger logrus.FieldLogger) summarize.Model {
	sc := cfg.Summary
	if sc.Backend == config.SummaryOpenAI {
		return summarize.NewChatModel(summarize.ChatOptions{
			BaseURL:     sc.OpenAI.BaseURL,
			APIKey:      sc.OpenAI.APIKey,
			Model:       sc.OpenAI.Model,
			Temperature: sc.OpenAI.Temperature,
			MaxTokens:   sc.OpenAI.MaxTokens,
		})
	}
	return summarize.NewLlamaModel(summarize.LlamaOptions{
		BinaryPath:  sc.LlamaCpp.Binary,
		ModelPath:   sc.LlamaCpp.Model,
		MaxTokens:   sc.LlamaCpp.MaxTokens,
		ContextSize: sc.LlamaCpp.ContextSize,
		Temperature: sc.LlamaCpp.Temperature,
		Threads:     sc.LlamaCpp.Threads,
	}, logger)
}

// newSummarizer builds the map/reduce summarizer. onChunk may be nil.
func newSummarizer(cfg config.Config, onChunk func(done, total int), logger logrus.FieldLogger) (*summarize.Summarizer, error) {
	return summarize.New(newSummaryModel(cfg, logger), summarize.Options{
		ChunkSize:       cfg.Summary.ChunkSize,
		Overlap:         cfg.Summary.Overlap,
		MapTemplate:     cfg.Summary.MapTemplate,
		CombineTemplate: cfg.Summary.CombineTemplate,
		Timeout:         cfg.Summary.Timeout(),
		OnChunk:         onChunk,
	}, logger)
}
