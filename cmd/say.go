package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/usecase"
)

// newSayCommand speaks text through the configured voice and speaker, which
// checks the output path without waking the assistant
func newSayCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize text and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			synthesizer, err := buildTTS(cfg, logger)
			if err != nil {
				return err
			}
			devices, err := buildAudio(cfg, logger)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			speaker := usecase.NewSpeaker(synthesizer, devices.player, cfg.PlaybackTimeout, logger.Named("speaker"))
			if err := speaker.Speak(cmd.Context(), text); err != nil {
				return err
			}
			logger.Info("Done speaking", zap.Int("chars", len(text)))
			return nil
		},
	}
}
