package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"alerthub/pkg/hubclient"
	"alerthub/pkg/protocol"
)

// Probe traffic resembles the field sensors that feed the hub.
var (
	probeSources  = []string{"sensor-a", "sensor-b", "router-core", "switch-planta2"} //nolint:gochecknoglobals // fixed catalogue
	probeMessages = []string{                                                        //nolint:gochecknoglobals // fixed catalogue
		"Heartbeat OK",
		"Latencia elevada detectada",
		"Microcorte de conectividad",
		"Uso de CPU superior al umbral",
		"Error de autenticación repetido",
	}
	probeWeights = []struct { //nolint:gochecknoglobals // fixed catalogue
		severity protocol.Severity
		weight   int
	}{
		{protocol.SeverityInfo, 50},
		{protocol.SeverityWarning, 28},
		{protocol.SeverityError, 16},
		{protocol.SeverityCritical, 6},
	}
)

type probeConfig struct {
	count    int
	interval time.Duration
	tcpAddr  string
	seed     uint64
}

// newProbeCmd creates the "alerthub probe" subcommand.
func newProbeCmd(g *globalFlags) *cobra.Command {
	var cfg probeConfig

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send synthetic sensor traffic over TCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnv(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			addr, err := resolveTCPAddr(ctx, env, cfg.tcpAddr)
			if err != nil {
				return err
			}
			sender, err := hubclient.DialTCP(ctx, addr)
			if err != nil {
				return err
			}
			defer sender.Close()

			seed := cfg.seed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			rng := rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // synthetic traffic
			w := cmd.OutOrStdout()
			for i := range cfg.count {
				if i > 0 {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(cfg.interval):
					}
				}
				req := probeEvent(rng)
				ack, err := sender.Send(ctx, req)
				if err != nil {
					return err
				}
				if !ack.OK {
					fmt.Fprintf(w, "rejected: %s\n", ack.Error)
					continue
				}
				fmt.Fprintf(w, "#%d %-8s %-16s %s\n", ack.EventID, req.Severity, req.Source, req.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.count, "count", "n", 12, "events to send")
	cmd.Flags().DurationVar(&cfg.interval, "interval", 400*time.Millisecond, "pause between events")
	cmd.Flags().StringVar(&cfg.tcpAddr, "tcp-addr", "", "TCP ingestion host:port (default: ask the hub)")
	cmd.Flags().Uint64Var(&cfg.seed, "seed", 0, "random seed for reproducible traffic (0 = random)")
	return cmd
}

// probeEvent draws one weighted synthetic event.
func probeEvent(rng *rand.Rand) protocol.CreateEventRequest {
	total := 0
	for _, w := range probeWeights {
		total += w.weight
	}
	n := rng.IntN(total)
	sev := protocol.SeverityInfo
	for _, w := range probeWeights {
		if n < w.weight {
			sev = w.severity
			break
		}
		n -= w.weight
	}
	return protocol.CreateEventRequest{
		Source:   probeSources[rng.IntN(len(probeSources))],
		Severity: sev,
		Message:  probeMessages[rng.IntN(len(probeMessages))],
	}
}

// resolveTCPAddr returns override, or the ingestion address the hub advertises.
// A wildcard or empty advertised host is replaced by the REST host.
func resolveTCPAddr(ctx context.Context, env *appEnv, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	base, err := url.Parse(env.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	client := hubclient.New(env.cfg.BaseURL, &http.Client{Timeout: env.cfg.HTTPTimeout})
	hub, err := client.FetchConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("ask hub for tcp port: %w", err)
	}
	host := hub.TCPHost
	switch host {
	case "", "0.0.0.0", "::":
		host = base.Hostname()
	}
	port := hub.TCPPort
	if port == 0 {
		port = protocol.DefaultTCPPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
