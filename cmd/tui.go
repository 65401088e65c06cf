package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nibzard/mdtasks/internal/ui"
)

func newTUICmd(a *app) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the terminal task board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, id, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			return ui.RunTUI(cmd.Context(), svc, ui.WithTitle(id.String()), ui.WithRefresh(refresh))
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 5*time.Second, "How often to re-read the document (0 disables)")
	return cmd
}
