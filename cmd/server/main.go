package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kittclouds/graphcore/internal/config"
	"github.com/kittclouds/graphcore/internal/metrics"
	"github.com/kittclouds/graphcore/internal/rpc"
	"github.com/kittclouds/graphcore/internal/server"
	"github.com/kittclouds/graphcore/internal/transport/tcp"
	"github.com/kittclouds/graphcore/internal/transport/ws"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graphcore [tcp-port]",
	Short: "graphcore is the outliner's graph data sidecar",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("tcp-port argument must be an integer: %w", err)
		}
		cfg.OverrideTCPPort(port)
	}

	level := zerolog.InfoLevel
	if cfg.DebugLog {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	reg := server.NewRegistry()
	m := metrics.New()
	dispatcher := rpc.New(reg, m, log, func() int64 { return time.Now().UnixMilli() }, cfg.DataDir)

	ln, err := tcp.Listen(cfg.TCPPort)
	if err != nil {
		return fmt.Errorf("bind tcp port %d: %w", cfg.TCPPort, err)
	}
	readTimeout := time.Duration(cfg.SocketReadTimeoutMs) * time.Millisecond
	tcpServer := tcp.NewServer(ln, dispatcher, log, readTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", tcpServer.Addr().String()).Msg("tcp transport listening")
		if err := tcpServer.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("tcp transport: %w", err)
		}
	}()

	var wsServer *ws.Server
	if cfg.EnableWebSocket {
		wsServer = ws.NewServer(
			fmt.Sprintf("127.0.0.1:%d", cfg.WSPort),
			dispatcher, log, cfg.AllowedOrigins, int64(cfg.MaxMessageBytes),
		)
		go func() {
			log.Info().Int("port", cfg.WSPort).Msg("websocket transport listening")
			if err := wsServer.Serve(ctx); err != nil {
				errCh <- fmt.Errorf("websocket transport: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("transport failed")
		shutdown(tcpServer, wsServer, reg, &log)
		return err
	}

	shutdown(tcpServer, wsServer, reg, &log)
	return nil
}

func shutdown(tcpServer *tcp.Server, wsServer *ws.Server, reg *server.Registry, log *zerolog.Logger) {
	if err := tcpServer.Stop(); err != nil {
		log.Warn().Err(err).Msg("tcp transport stop")
	}
	if wsServer != nil {
		if err := wsServer.Stop(); err != nil {
			log.Warn().Err(err).Msg("websocket transport stop")
		}
	}
	if err := reg.CloseAll(); err != nil {
		log.Warn().Err(err).Msg("graph registry close")
	}
	log.Info().Msg("shutdown complete")
}
