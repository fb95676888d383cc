// ABOUTME: Standalone mock agent for end-to-end testing of the relay
// ABOUTME: Usage: mock-agent [-addr localhost:9090] [-name "Taro Tanaka"] [-min-delay 200ms]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/2389/agentlink-gateway/internal/mockagent"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "listen address")
	path := flag.String("path", "/chat", "endpoint path")
	name := flag.String("name", mockagent.DefaultPersona.Name, "candidate name")
	title := flag.String("title", mockagent.DefaultPersona.Title, "candidate title")
	skills := flag.String("skills", strings.Join(mockagent.DefaultPersona.Skills, ","), "comma separated skills")
	minDelay := flag.Duration("min-delay", 200*time.Millisecond, "minimum reply delay")
	maxDelay := flag.Duration("max-delay", 800*time.Millisecond, "maximum reply delay")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	persona := mockagent.DefaultPersona
	persona.Name = *name
	persona.Title = *title
	persona.Skills = splitSkills(*skills)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *addr, *path, mockagent.Options{
		Persona:  persona,
		MinDelay: *minDelay,
		MaxDelay: *maxDelay,
		Logger:   logger,
	}, logger); err != nil {
		logger.Error("mock agent failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, path string, opts mockagent.Options, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("POST "+path, mockagent.Handler(opts))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock agent listening", "endpoint", fmt.Sprintf("http://%s%s", addr, path), "persona", opts.Persona.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func splitSkills(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
