package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erg0nix/konsilium/internal/app"
	grpcsvc "github.com/erg0nix/konsilium/internal/grpc"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			t := newTable("NAME", "STATUS", "PID", "ENDPOINT", "MODEL", "UPTIME")

			pid := app.ReadPID(app.PIDFile(a.Config))
			if pid == 0 {
				t.Row("konsilium", styleError.Render("stopped"), "-", a.ServerAddr, "-", "-")
				fmt.Println(t.Render())
				return nil
			}

			model, uptime := "-", "-"
			if daemonStatus, err := queryDaemon(cmd.Context(), a.ServerAddr); err == nil {
				model = daemonStatus.Model + " (" + strings.Join(daemonStatus.Providers, ", ") + ")"
				uptime = (time.Duration(daemonStatus.UptimeSeconds) * time.Second).String()
			}

			t.Row("konsilium", styleSuccess.Render("running"), fmt.Sprintf("%d", pid), a.ServerAddr, model, uptime)
			fmt.Println(t.Render())
			return nil
		},
	}
}

func queryDaemon(ctx context.Context, serverAddr string) (grpcsvc.DaemonStatus, error) {
	client, err := grpcsvc.Dial(serverAddr)
	if err != nil {
		return grpcsvc.DaemonStatus{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return client.DaemonStatus(ctx)
}
