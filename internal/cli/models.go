package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"audio-digest/internal/bootstrap"
)

func (c *cli) modelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or download whisper.cpp models for the local backend",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog models and whether they are downloaded",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.load(cmd, nil)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSIZE\tLANGUAGES\tLOCAL PATH")
			for _, m := range bootstrap.WhisperModels(cfg.Transcription.Local) {
				langs := "english"
				if m.Multilingual {
					langs = "multilingual"
				}
				local := "-"
				if m.Downloaded {
					local = m.LocalPath
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.SizeLabel, langs, local)
			}
			return tw.Flush()
		},
	}

	download := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a catalog model into transcription.local.models_dir",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load(cmd, nil)
			if err != nil {
				return err
			}

			logger.WithField("model", args[0]).Info("downloading whisper model")
			model, err := bootstrap.DownloadWhisperModel(cmd.Context(), cfg.Transcription.Local, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\nblake3 %s\n", model.ID, model.LocalPath, model.Checksum)
			fmt.Fprintf(cmd.OutOrStdout(), "Use it with: transcription.local.model: %s\n", model.ID)
			return nil
		},
	}

	cmd.AddCommand(list, download)
	return cmd
}
