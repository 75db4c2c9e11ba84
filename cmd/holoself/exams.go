package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/fetcher"
	"github.com/pbaille/holoself/internal/labs"
	"github.com/pbaille/holoself/internal/llm"
	"github.com/pbaille/holoself/internal/scheduler"
	"github.com/pbaille/holoself/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func examsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exams",
		Short: "Predict and track lab exams",
	}
	cmd.AddCommand(examsGenerateCmd())
	cmd.AddCommand(examsRefreshCmd())
	cmd.AddCommand(examsListCmd())
	cmd.AddCommand(examsDoneCmd())
	return cmd
}

func printExams(exams []domain.ScheduledExam) {
	for _, e := range exams {
		id := ""
		if e.ID != "" {
			id = shortID(e.ID) + "  "
		}
		fmt.Printf("%s%s  %-26s %s\n", id, e.ScheduledDate, e.ExamType, e.Reason)
	}
}

func examsGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Show the exams due today without saving them",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			exams := scheduler.FromSource(cmd.Context(), s, time.Now(), logger)
			if len(exams) == 0 {
				fmt.Println("No exams due.")
				return nil
			}
			printExams(exams)
			return nil
		},
	}
}

func examsRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Schedule due exams that are not already pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			added, err := scheduler.Refresh(cmd.Context(), s, time.Now(), logger)
			if err != nil {
				return err
			}
			if len(added) == 0 {
				fmt.Println("Schedule up to date.")
				return nil
			}
			fmt.Printf("Scheduled %d exam(s):\n", len(added))
			printExams(added)
			return nil
		},
	}
}

func examsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List upcoming exams, soonest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			exams, err := s.UpcomingExams(cmd.Context())
			if err != nil {
				return err
			}
			if len(exams) == 0 {
				fmt.Println("No upcoming exams.")
				return nil
			}
			printExams(exams)
			return nil
		},
	}
}

func examsDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Mark an exam completed (id prefix accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.CompleteExam(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("exam not found: %s", args[0])
				}
				return err
			}
			fmt.Println("Exam completed.")
			return nil
		},
	}
}

func labsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labs",
		Short: "Import clinical lab reports",
	}

	importCmd := &cobra.Command{
		Use:   "import [pdf|url]",
		Short: "Extract markers from a PDF file or report URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			im := getImporter(s, getProvider(cmd.Context()))
			if im == nil {
				return fmt.Errorf("lab import needs an LLM: %w", llm.ErrNotConfigured)
			}

			fmt.Print("Extracting... ")
			var res *labs.Result
			if src := args[0]; fetcher.IsURL(src) {
				res, err = im.ImportURL(cmd.Context(), src)
			} else {
				res, err = im.ImportFile(cmd.Context(), src)
			}
			if err != nil {
				fmt.Println("failed")
				return err
			}
			fmt.Println("done")
			printLabs(res.Lab, res.Date, res.Results)

			// new lab dates may change what is due
			added, err := scheduler.Refresh(cmd.Context(), s, time.Now(), logger)
			if err != nil {
				logger.Warn("Exam refresh after import failed", zap.Error(err))
				return nil
			}
			if len(added) > 0 {
				fmt.Printf("Scheduled %d exam(s):\n", len(added))
				printExams(added)
			}
			return nil
		},
	}

	cmd.AddCommand(importCmd)
	return cmd
}

func printLabs(lab, date string, results []domain.LabResult) {
	if lab != "" || date != "" {
		fmt.Printf("%s %s\n", lab, date)
	}
	for _, r := range results {
		fmt.Printf("  %-20s %8g %-8s %-12s %s\n", r.Marker, r.Value, r.Unit, r.ReferenceRange, r.Status)
	}
}
