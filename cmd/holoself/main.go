package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/pbaille/holoself/internal/agent"
	"github.com/pbaille/holoself/internal/config"
	"github.com/pbaille/holoself/internal/labs"
	"github.com/pbaille/holoself/internal/llm"
	"github.com/pbaille/holoself/internal/protocol"
	"github.com/pbaille/holoself/internal/store"
	"github.com/pbaille/holoself/internal/voice"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "holoself",
		Short:         "Personal health assistant: supplements, vitals, lab exams",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zc := zap.NewProductionConfig()
			if verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			// calendar days follow the configured timezone, not the host's
			loc, err := cfg.Location.Location()
			if err != nil {
				return err
			}
			time.Local = loc
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "settings file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides settings)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(supplementCmd())
	rootCmd.AddCommand(vitalCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(actCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(examsCmd())
	rootCmd.AddCommand(labsCmd())
	rootCmd.AddCommand(speakCmd())
	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(vitaminDCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DBPath)
}

// getProvider returns the configured LLM, or nil when none is usable
func getProvider(ctx context.Context) llm.Provider {
	p, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			logger.Warn("LLM provider unavailable", zap.Error(err))
		} else {
			logger.Debug("LLM provider not configured")
		}
		return nil
	}
	return p
}

func getAgent(s *store.Store, p llm.Provider) *agent.Service {
	var gen llm.TextGenerator
	if p != nil {
		gen = llm.NewGuarded(p, llm.GuardConfig{Timeout: cfg.LLM.Timeout})
	}
	return agent.NewService(s, protocol.Default(), gen, agent.Options{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
}

func getImporter(s *store.Store, p llm.Provider) *labs.Importer {
	if p == nil {
		return nil
	}
	return labs.NewImporter(p, s, nil, logger)
}

// getSynthesizer returns Cartesia with the native voice as fallback, or nil
func getSynthesizer() voice.Synthesizer {
	var chain voice.Fallback
	if cfg.Voice.CartesiaAPIKey != "" {
		chain = append(chain, voice.NewCartesiaClient(voice.CartesiaConfig{
			APIKey:  cfg.Voice.CartesiaAPIKey,
			VoiceID: cfg.Voice.CartesiaVoiceID,
			ModelID: cfg.Voice.CartesiaModelID,
		}))
	}
	native := voice.NewNativeSynthesizer(filepath.Join(cfg.DataDir, "tmp"))
	if cfg.Voice.NativeTTS || native.Available() {
		chain = append(chain, native)
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

func getTranscriber() *voice.WhisperTranscriber {
	return voice.NewWhisperTranscriber(voice.WhisperConfig{
		Binary:   cfg.Voice.WhisperBinary,
		Model:    cfg.Voice.WhisperModel,
		Language: cfg.Voice.Language,
		Threads:  cfg.Voice.Threads,
	})
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
