package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbaille/holoself/internal/api"
	"github.com/pbaille/holoself/internal/protocol"
	"github.com/pbaille/holoself/internal/scheduler"
	"github.com/pbaille/holoself/internal/store"
	"github.com/pbaille/holoself/internal/vitamind"
	"github.com/pbaille/holoself/internal/voice"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the daily exam refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider := getProvider(ctx)
			pool := voice.NewPool(cfg.Voice.Workers)
			defer pool.Close()

			deps := api.Deps{
				Store:    s,
				Agent:    getAgent(s, provider),
				Catalog:  protocol.Default(),
				Importer: getImporter(s, provider),
				Synth:    getSynthesizer(),
				Trans:    getTranscriber(),
				Pool:     pool,
				UV:       vitamind.NewUVClient(""),
				Location: cfg.Location,
				Logger:   logger,
			}
			if provider != nil {
				deps.LLMModel = provider.Model()
			}
			srv := api.New(deps, cfg.Server)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(ctx)
			})
			g.Go(func() error {
				return runRefreshJob(ctx, s, cfg.Scheduler.RefreshCron)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides settings)")
	return cmd
}

// runRefreshJob refreshes the exam schedule on the cron spec until ctx ends
func runRefreshJob(ctx context.Context, s *store.Store, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		added, err := scheduler.Refresh(jobCtx, s, time.Now(), logger)
		if err != nil {
			logger.Warn("Scheduled exam refresh failed", zap.Error(err))
			return
		}
		logger.Info("Exam schedule refreshed", zap.Int("added", len(added)))
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("Exam refresh scheduled", zap.String("cron", spec))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check database, LLM and voice dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbOK := false
			if s, err := getStore(); err == nil {
				dbOK = s.Ping(cmd.Context()) == nil
				s.Close()
			}

			llmModel := "not configured"
			if p := getProvider(cmd.Context()); p != nil {
				llmModel = p.Model()
			}

			ws := getTranscriber().Status()

			fmt.Printf("Database:   %s (%s)\n", okText(dbOK), cfg.DBPath)
			fmt.Printf("LLM:        %s (%s)\n", cfg.LLM.Provider, llmModel)
			fmt.Printf("TTS:        %s\n", okText(getSynthesizer() != nil))
			fmt.Printf("Whisper:    %s %s\n", okText(ws.BinaryFound), ws.BinaryPath)
			fmt.Printf("Model:      %s %s\n", okText(ws.ModelFound), ws.ModelPath)
			fmt.Printf("Timezone:   %s\n", cfg.Location.Timezone)
			return nil
		},
	}
}

func okText(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print effective settings (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write effective settings to the settings file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", configPath)
			return nil
		},
	})

	return cmd
}
