package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/protocol"
	"github.com/spf13/cobra"
)

func supplementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supplement",
		Short: "Log and list supplement intakes",
	}
	cmd.AddCommand(supplementLogCmd())
	cmd.AddCommand(supplementListCmd())
	return cmd
}

func supplementLogCmd() *cobra.Command {
	var dosage, category, notes string

	cmd := &cobra.Command{
		Use:   "log [name]",
		Short: "Log a supplement intake now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			entry := domain.SupplementEntry{Name: name, Dosage: dosage, Category: category}
			if p, ok := protocol.Default().Lookup(name); ok {
				entry.Name = p.Name
				if entry.Dosage == "" {
					entry.Dosage = p.Dosage
				}
				if entry.Category == "" {
					entry.Category = p.Category
				}
			}
			if entry.Category == "" {
				entry.Category = "as_needed"
			}
			if notes != "" {
				entry.Notes = &notes
			}

			saved, err := s.AddSupplement(cmd.Context(), entry)
			if err != nil {
				return err
			}

			fmt.Printf("Logged %s (%s) at %s  [%s]\n",
				saved.Name, saved.Dosage, saved.TakenAt.Format("15:04"), shortID(saved.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&dosage, "dosage", "", "dosage taken")
	cmd.Flags().StringVar(&category, "category", "", "morning, afternoon, night or as_needed")
	cmd.Flags().StringVar(&notes, "notes", "", "free text notes")
	return cmd
}

func supplementListCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List intakes for a day (default today)",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				d, err := time.ParseInLocation(domain.DateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
				}
				day = d
			}
			from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
			to := from.AddDate(0, 0, 1).Add(-time.Second)

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.ListSupplements(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No supplements logged.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %s  %-24s %s\n", shortID(e.ID), e.TakenAt.Format("15:04"), e.Name, e.Dosage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to list (YYYY-MM-DD)")
	return cmd
}

func vitalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vital",
		Short: "Record vital signs",
	}

	var source string
	logCmd := &cobra.Command{
		Use:   "log [type] [value] [unit]",
		Short: "Record a vital sign measurement",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[1])
			}
			var unit string
			if len(args) == 3 {
				unit = args[2]
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			saved, err := s.AddVital(cmd.Context(), domain.VitalEntry{
				VitalType: args[0],
				Value:     value,
				Unit:      unit,
				Source:    source,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Recorded %s: %g %s  [%s]\n", saved.VitalType, saved.Value, saved.Unit, shortID(saved.ID))
			return nil
		},
	}
	logCmd.Flags().StringVar(&source, "source", domain.SourceManual, "manual, wearable, webcam or agent")

	cmd.AddCommand(logCmd)
	return cmd
}

func timelineCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show supplements and vitals, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			to := time.Now()
			entries, err := s.Timeline(cmd.Context(), to.AddDate(0, 0, -days), to)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("Nothing recorded.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%s  %-10s %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.EventType, truncate(e.Label, 60))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "how many days back")
	return cmd
}
