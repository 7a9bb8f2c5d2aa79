package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/local/assistantbridge/internal/config"
	"github.com/local/assistantbridge/internal/dispatcher"
	"github.com/local/assistantbridge/internal/kgsync"
	"github.com/local/assistantbridge/internal/peer"
	"github.com/local/assistantbridge/internal/peerexec"
	"github.com/local/assistantbridge/internal/queueprocessor"
	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/security"
	"github.com/local/assistantbridge/internal/store"
	"github.com/local/assistantbridge/internal/toolserver"
	"github.com/local/assistantbridge/internal/transport"
	"github.com/spf13/cobra"
)

// runServe wires every component together and blocks until a shutdown
// signal arrives or the listener fails.
func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := registry.New()

	var kg *kgsync.Client
	if cfg.KGURL != "" {
		kg = kgsync.New(cfg.KGURL, kgPort(cfg.KGURL), slog.Default())
	}

	var peerClient *peer.Client
	if cfg.CodexMCPEnabled {
		peerClient = peer.New(peer.Config{
			Path:                     cfg.CodexPath,
			Sandbox:                  cfg.CodexSandbox,
			ApprovalPolicy:           cfg.CodexApprovalPolicy,
			BaseInstructionsOverride: cfg.CodexBaseInstructions,
			Timeout:                  5 * time.Minute,
		}, slog.Default())
		if err := peerClient.Connect(ctx); err != nil {
			slog.Warn("codex peer connect failed, falling back to one-shot exec per message", "error", err)
		}
		defer peerClient.Close()
	}

	peerExecCfg := peerexec.Config{Path: cfg.CodexPath}
	disp := dispatcher.New(st, reg, peerClient, peerExecCfg, slog.Default())

	queue := queueprocessor.New(st, reg, slog.Default())
	queue.Start(ctx)
	defer queue.Stop()

	newToolServer := func(identity store.AssistantId) *toolserver.Server {
		return toolserver.New(identity, st, reg, disp, kg, slog.Default())
	}

	var kgPinger transport.KGPinger
	if kg != nil {
		kgPinger = kg
	}
	handler := transport.New(st, reg, queue, newToolServer, kgPinger, slog.Default())

	mux := http.NewServeMux()
	handler.Mount(mux, "/mcp")

	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           security.Filter(cfg.Port, "/mcp", mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	slog.Info("assistant bridge started", "addr", server.Addr, "codex_mcp_enabled", cfg.CodexMCPEnabled)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("assistant bridge stopped gracefully")
	return nil
}

// kgPort extracts the port from the knowledge-graph base URL, for pinning
// the advisory sync client's Host header. Falls back to the service's
// documented default port when the URL carries none.
func kgPort(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 3789
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	return 3789
}

// runStatus is a thin CLI client for a running bridge's /status endpoint.
func runStatus(cmd *cobra.Command, port int) error {
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/status", port))
	if err != nil {
		return fmt.Errorf("request status: %w", err)
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}
