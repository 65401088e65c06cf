package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nibzard/mdtasks/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the task API and the GitHub push webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, id, err := a.newService(ctx)
			if err != nil {
				return err
			}
			hook, err := a.newWebhook(ctx, id)
			if err != nil {
				return err
			}
			a.logger.Info("serving", "document", id.String(), "store", a.cfg.Store)
			return server.New(svc, hook, a.logger).Run(ctx, a.cfg.ListenAddr)
		},
	}
}
