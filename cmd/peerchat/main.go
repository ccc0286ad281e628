package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/omochice/toy-peer-chat/internal/bus"
	"github.com/omochice/toy-peer-chat/internal/chat"
	"github.com/omochice/toy-peer-chat/internal/config"
	"github.com/omochice/toy-peer-chat/internal/logging"
	"github.com/omochice/toy-peer-chat/internal/metrics"
	"github.com/omochice/toy-peer-chat/internal/notify"
	"github.com/omochice/toy-peer-chat/internal/session"
	"github.com/omochice/toy-peer-chat/internal/trace"
	"github.com/omochice/toy-peer-chat/internal/transport"
	"github.com/omochice/toy-peer-chat/internal/ui"
)

const shutdownTimeout = 2 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

// outcome is how the session goroutine ended.
type outcome struct {
	connectErr error
	runErr     error
}

func run(args []string) int {
	cfg, err := config.Load(args, os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logs := logging.NewManager()
	if err := logs.Configure(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		return 1
	}
	defer logs.Close()
	logger := logs.Logger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(cfg.MetricsAddr)
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		}()
	}

	var tracer *trace.Recorder
	if cfg.TracePath != "" {
		tracer, err = trace.Create(cfg.TracePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer tracer.Close()
	}

	kind, err := transport.ParseKind(cfg.Transport)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	role := session.Client
	if cfg.Server {
		role = session.Server
	}

	messageBus := bus.New(logs.Logger("bus"))
	defer messageBus.Close()

	sess := session.New(session.Options{
		Name:      cfg.Name,
		Role:      role,
		Address:   cfg.Address,
		Port:      cfg.Port,
		Transport: kind,
		Logger:    logs.Logger("session"),
		Tracer:    tracer,
		OnEvent: func(e session.Event) {
			topic := bus.TopicState
			if e.Kind == session.EventMessage && e.Entry.Direction == chat.Incoming {
				topic = bus.TopicIncoming
			}
			messageBus.Publish(topic, e)
		},
		OnListen: func(addr string) {
			logger.Info("waiting for peer", "addr", addr)
		},
	})

	if cfg.Notify {
		notify.NewService(messageBus, notify.DesktopSender{}, logs.Logger("notify")).Start(ctx)
	}

	program := tea.NewProgram(ui.New(sess), tea.WithAltScreen(), tea.WithContext(ctx))
	go forwardRefresh(program,
		messageBus.Subscribe(bus.TopicState),
		messageBus.Subscribe(bus.TopicIncoming),
	)

	sessCtx, cancelSess := context.WithCancel(ctx)
	defer cancelSess()

	var ended atomic.Bool
	result := make(chan outcome, 1)
	go func() {
		var out outcome
		if err := sess.Connect(sessCtx); err != nil {
			out.connectErr = err
		} else {
			out.runErr = sess.Run(sessCtx)
		}
		if out.connectErr != nil || out.runErr != nil {
			ended.Store(true)
		}
		result <- out
		program.Send(ui.ClosedMsg{Err: errors.Join(out.connectErr, out.runErr)})
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("ui failed", "error", err)
	}

	userQuit := !ended.Load()
	cancelSess()
	sess.Close()
	out := <-result

	switch {
	case userQuit:
		logger.Info("user quit")
		return 0
	case out.connectErr != nil:
		logger.Error("connect failed", "error", out.connectErr)
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", out.connectErr)
		return 1
	case out.runErr != nil:
		logger.Error("connection closed", "error", out.runErr)
		fmt.Fprintln(os.Stderr, "Connection closed")
		return 1
	}
	return 0
}

// forwardRefresh redraws the UI for session events until the bus closes.
// Bursts are coalesced so a busy UI never stalls the bus.
func forwardRefresh(program *tea.Program, state, incoming bus.Subscription) {
	kick := make(chan struct{}, 1)
	defer close(kick)
	go func() {
		for range kick {
			program.Send(ui.RefreshMsg{})
		}
	}()

	for {
		select {
		case _, ok := <-state:
			if !ok {
				return
			}
		case _, ok := <-incoming:
			if !ok {
				return
			}
		}
		select {
		case kick <- struct{}{}:
		default:
		}
	}
}
