package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pbaille/holoself/internal/vitamind"
	"github.com/pbaille/holoself/internal/voice"
	"github.com/spf13/cobra"
)

func speakCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Synthesize text (default: the current agent message) to a WAV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			synth := getSynthesizer()
			if synth == nil {
				return fmt.Errorf("speech synthesis: %w", voice.ErrNotConfigured)
			}

			text := strings.Join(args, " ")
			if text == "" {
				s, err := getStore()
				if err != nil {
					return err
				}
				msg, err := getAgent(s, getProvider(cmd.Context())).Message(cmd.Context())
				s.Close()
				if err != nil {
					return err
				}
				text = msg.Text
			}

			pool := voice.NewPool(cfg.Voice.Workers)
			defer pool.Close()

			audio, err := voice.Run(cmd.Context(), pool, func(ctx context.Context) ([]byte, error) {
				return synth.Synthesize(ctx, text)
			})
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, audio, 0644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			fmt.Printf("%s\n→ %s (%d bytes)\n", text, out, len(audio))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "holoself.wav", "output file")
	return cmd
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen [audio]",
		Short: "Transcribe an audio file and answer it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr := getTranscriber()
			pool := voice.NewPool(cfg.Voice.Workers)
			defer pool.Close()

			text, err := voice.Run(cmd.Context(), pool, func(ctx context.Context) (string, error) {
				return tr.Transcribe(ctx, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Printf("Heard: %s\n", text)
			if strings.TrimSpace(text) == "" {
				return nil
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			msg, err := getAgent(s, nil).HandleTranscript(cmd.Context(), text)
			if err != nil {
				return err
			}
			printMessage(msg)
			return nil
		},
	}
}

func vitaminDCmd() *cobra.Command {
	var uv float64
	var skin int

	cmd := &cobra.Command{
		Use:   "vitamind",
		Short: "Sun exposure and vitamin D3 recommendation for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			if skin == 0 {
				skin = cfg.Location.SkinType
			}
			if !cmd.Flags().Changed("uv") {
				var err error
				uv, err = vitamind.NewUVClient("").CurrentUVIndex(cmd.Context(), cfg.Location.Latitude, cfg.Location.Longitude)
				if err != nil {
					return err
				}
			}

			rec := vitamind.Calculate(uv, skin, cfg.Location.Latitude, time.Now().Month())
			fmt.Printf("UV %.1f  skin type %d  lat %.2f\n", rec.UVIndex, rec.SkinType, rec.Latitude)
			fmt.Printf("Sun: %d min, %s\n", rec.OptimalMinutes, rec.BestWindow)
			fmt.Printf("D3: %d IU/day\n", rec.D3Supplement)
			fmt.Println(rec.Note)
			return nil
		},
	}

	cmd.Flags().Float64Var(&uv, "uv", 0, "UV index (default: fetch current)")
	cmd.Flags().IntVar(&skin, "skin-type", 0, "Fitzpatrick skin type 1-6 (default: settings)")
	return cmd
}
