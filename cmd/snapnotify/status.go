package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/snapnotify/internal/config"
	"github.com/GriffinCanCode/snapnotify/internal/grpcclient"
	"github.com/GriffinCanCode/snapnotify/internal/server"
)

var (
	servingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	notServingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	labelStyle      = lipgloss.NewStyle().Width(22)
)

func newStatusCmd(cfgFile *string) *cobra.Command {
	var addr string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running daemon's health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, err := config.Load(*cfgFile)
				if err != nil {
					return err
				}
				addr = cfg.GRPCAddr
			}
			if addr == "" {
				return fmt.Errorf("grpc is disabled; pass --addr")
			}

			client, err := grpcclient.New(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			services := []string{server.ServiceOverall, server.ServiceClipboard, server.ServiceFolder}
			statuses, err := client.CheckAll(ctx, services...)
			if err != nil {
				return err
			}
			for _, svc := range services {
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(svc, statuses[svc]))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "daemon gRPC address (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall timeout")
	return cmd
}

func renderStatus(service string, st healthpb.HealthCheckResponse_ServingStatus) string {
	style := notServingStyle
	if st == healthpb.HealthCheckResponse_SERVING {
		style = servingStyle
	}
	return labelStyle.Render(service) + style.Render(st.String())
}
