package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"alerthub/internal/hubtest"
	"alerthub/pkg/hubclient"
	"alerthub/pkg/protocol"
)

type demoHubConfig struct {
	host     string
	httpPort int
	pushPort int
	tcpPort  int
}

// newDemoHubCmd creates the "alerthub demo-hub" subcommand.
func newDemoHubCmd(g *globalFlags) *cobra.Command {
	var cfg demoHubConfig

	cmd := &cobra.Command{
		Use:    "demo-hub",
		Short:  "Run an in-memory hub for local experiments",
		Long:   "Serves the REST API, the push channel and the TCP ingestion port from memory.\nEmail delivery is never configured, so error and critical events log a skipped notification.",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := g.logLevel
			if level == "" {
				level = "info"
			}
			log, err := newLogger(cmd.ErrOrStderr(), level)
			if err != nil {
				return err
			}
			hub := hubtest.NewHub(log)

			var lc net.ListenConfig
			ctx := cmd.Context()
			apiLn, err := lc.Listen(ctx, "tcp", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.httpPort)))
			if err != nil {
				return err
			}
			pushLn, err := lc.Listen(ctx, "tcp", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.pushPort)))
			if err != nil {
				_ = apiLn.Close()
				return err
			}
			tcpLn, err := lc.Listen(ctx, "tcp", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.tcpPort)))
			if err != nil {
				_ = apiLn.Close()
				_ = pushLn.Close()
				return err
			}
			hub.SetEndpoints(hubclient.HubConfig{
				WSURL:    "ws://" + pushLn.Addr().String(),
				TCPHost:  cfg.host,
				TCPPort:  tcpLn.Addr().(*net.TCPAddr).Port,
				HTTPPort: apiLn.Addr().(*net.TCPAddr).Port,
			})

			api := &http.Server{Handler: hub.Router(), ReadHeaderTimeout: 5 * time.Second}
			push := &http.Server{Handler: hub.PushHandler(), ReadHeaderTimeout: 5 * time.Second}

			grp, ctx := errgroup.WithContext(ctx)
			grp.Go(func() error { return serveUntilClosed(api, apiLn) })
			grp.Go(func() error { return serveUntilClosed(push, pushLn) })
			grp.Go(func() error { return hub.ServeTCP(tcpLn) })
			grp.Go(func() error {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				hub.DropPushClients()
				_ = api.Shutdown(shutdown)
				_ = push.Shutdown(shutdown)
				return tcpLn.Close()
			})

			fmt.Fprintf(cmd.OutOrStdout(), "demo hub: http://%s  push ws://%s  tcp %s\n",
				apiLn.Addr(), pushLn.Addr(), tcpLn.Addr())
			return grp.Wait()
		},
	}

	cmd.Flags().StringVar(&cfg.host, "host", "127.0.0.1", "listen host")
	cmd.Flags().IntVar(&cfg.httpPort, "http-port", 5100, "REST port")
	cmd.Flags().IntVar(&cfg.pushPort, "push-port", protocol.DefaultPushPort, "push channel port")
	cmd.Flags().IntVar(&cfg.tcpPort, "tcp-port", protocol.DefaultTCPPort, "TCP ingestion port")
	return cmd
}

func serveUntilClosed(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
