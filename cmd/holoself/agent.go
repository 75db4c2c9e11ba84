package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/protocol"
	"github.com/spf13/cobra"
)

func messageCmd() *cobra.Command {
	var heard string

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Show the current agent message",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			svc := getAgent(s, getProvider(cmd.Context()))

			var msg *domain.AgentMessage
			if heard != "" {
				msg, err = svc.HandleTranscript(cmd.Context(), heard)
			} else {
				msg, err = svc.Message(cmd.Context())
			}
			if err != nil {
				return err
			}

			printMessage(msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&heard, "heard", "", "answer this text as if it was spoken")
	return cmd
}

func printMessage(msg *domain.AgentMessage) {
	fmt.Printf("[%s/%s] %s\n", msg.Category, msg.Priority, msg.Text)
	if msg.Action != nil {
		fmt.Printf("  action: %s %s\n", msg.Action.ActionType, string(msg.Action.Payload))
	}
}

func actCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "act [action_type] [supplement]",
		Short: "Execute an agent action, e.g. act log_supplement Winfit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args[1:], " ")

			payload := domain.SupplementPayload{Name: name}
			if p, ok := protocol.Default().Lookup(name); ok {
				payload = protocol.Payload(p)
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			confirmation, err := getAgent(s, nil).ExecuteAction(cmd.Context(), domain.AgentAction{
				ActionType: args[0],
				Payload:    raw,
			})
			if err != nil {
				return err
			}

			fmt.Println(confirmation)
			return nil
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's adherence",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := getAgent(s, nil).DailyStats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d/%d (%d%%)\n", stats.Date, stats.Taken, stats.Total, stats.Percent)
			for _, n := range stats.TakenNames {
				fmt.Printf("  ✓ %s\n", n)
			}
			for _, n := range stats.PendingNames {
				fmt.Printf("  · %s\n", n)
			}
			return nil
		},
	}
}
