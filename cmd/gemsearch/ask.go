package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/gemsearch/internal/format"
	"github.com/mohammad-safakhou/gemsearch/models"
)

func askCmd(a *app) *cobra.Command {
	var followUps []string
	ask := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask one question from the terminal, with optional follow-ups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService(cmd.Context(), a.cfg, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			res, err := svc.StartSearch(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printAnswer(out, res.Summary, res.Sources)

			for _, q := range followUps {
				fmt.Fprintf(out, "\n> %s\n\n", q)
				next, err := svc.FollowUp(cmd.Context(), res.SessionID, q)
				if err != nil {
					return err
				}
				printAnswer(out, next.Summary, next.Sources)
			}
			return nil
		},
	}
	ask.Flags().StringArrayVarP(&followUps, "follow-up", "f", nil, "follow-up question, may be repeated")
	return ask
}

func printAnswer(w io.Writer, summary string, sources []models.Source) {
	fmt.Fprintln(w, format.PlainText(summary))
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, src := range sources {
		fmt.Fprintf(w, "  %d. %s <%s>\n", i+1, src.Title, src.URL)
	}
}
