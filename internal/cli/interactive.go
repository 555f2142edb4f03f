package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"audio-digest/internal/bootstrap"
	"audio-digest/internal/config"
	"audio-digest/internal/domain"
)

// promptBackend asks for the transcription backend and, for the local
// backend, the whisper model. Answers are applied as overrides.
func (c *cli) promptBackend(v *viper.Viper) error {
	in := bufio.NewReader(c.stdin)

	backend, err := promptChoice(in, c.stderr, "Transcription backend", config.Backends, v.GetString("transcription.backend"))
	if err != nil {
		return err
	}
	v.Set("transcription.backend", backend)
	if backend != config.BackendLocal {
		return nil
	}

	var local config.LocalConfig
	if err := v.UnmarshalKey("transcription.local", &local); err != nil {
		return err
	}
	ids := lo.Map(bootstrap.WhisperModels(local), func(m domain.WhisperModel, _ int) string {
		if m.Downloaded {
			return m.ID + " (downloaded)"
		}
		return m.ID
	})
	def, _ := lo.Find(ids, func(id string) bool { return strings.HasPrefix(id, local.Model) })
	choice, err := promptChoice(in, c.stderr, "Whisper model", ids, def)
	if err != nil {
		return err
	}
	v.Set("transcription.local.model", strings.TrimSuffix(choice, " (downloaded)"))
	return nil
}

// promptChoice shows numbered options and reads a number or an option name.
// An empty answer keeps def.
func promptChoice(in *bufio.Reader, out io.Writer, label string, options []string, def string) (string, error) {
	for {
		fmt.Fprintf(out, "%s:\n", label)
		for i, opt := range options {
			marker := " "
			if opt == def {
				marker = "*"
			}
			fmt.Fprintf(out, " %s %d) %s\n", marker, i+1, opt)
		}
		fmt.Fprint(out, "> ")

		line, err := in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if answer == "" && def != "" {
			return def, nil
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		if lo.Contains(options, answer) {
			return answer, nil
		}
		if err != nil {
			if err == io.EOF {
				return "", usageError{err: fmt.Errorf("no answer for %s", strings.ToLower(label))}
			}
			return "", err
		}
		fmt.Fprintf(out, "invalid choice %q\n", answer)
	}
}
