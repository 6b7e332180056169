package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/growthdesk/internal/classifier"
	"github.com/ashureev/growthdesk/internal/domain"
	"github.com/ashureev/growthdesk/internal/ledger"
)

func newClassifyCmd() *cobra.Command {
	var lastReply string
	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Print the task mode a chat message is classified as",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var history []domain.Turn
			if lastReply != "" {
				history = append(history, domain.Turn{ID: 1, Role: domain.RoleAssistant, Text: lastReply})
			}
			mode := classifier.New(nil).Classify(strings.Join(args, " "), ledger.Frozen(history))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(mode)
		},
	}
	cmd.Flags().StringVar(&lastReply, "last-reply", "", "previous assistant reply, to classify approval answers")
	return cmd
}
