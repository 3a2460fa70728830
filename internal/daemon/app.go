// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the sigcaptd process lifecycle: the signature session,
// the API server and graceful shutdown.
package daemon

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
)

// Session is the part of the signature controller the daemon drives.
type Session interface {
	Initialize(settings sigcapt.Settings, onReady func()) error
	Bus() bus.Bus
}

// App owns the long-lived runtime lifecycle and delegates server management
// to Manager.
type App struct {
	logger   zerolog.Logger
	manager  Manager
	session  Session
	settings sigcapt.Settings
}

// NewApp creates a new App orchestrator. settings are applied by the
// initial Initialize.
func NewApp(logger zerolog.Logger, manager Manager, session Session, settings sigcapt.Settings) *App {
	return &App{
		logger:   logger,
		manager:  manager,
		session:  session,
		settings: settings,
	}
}

// Run initializes the signature session, starts the API server and blocks
// until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.session == nil {
		return ErrMissingController
	}

	g, ctx := errgroup.WithContext(ctx)

	sub, err := a.session.Bus().Subscribe(ctx, bus.AllTopics)
	if err != nil {
		return fmt.Errorf("subscribe to session notifications: %w", err)
	}
	g.Go(func() error {
		defer func() { _ = sub.Close() }()
		a.watch(ctx, sub)
		return nil
	})

	if err := a.session.Initialize(a.settings, func() {
		a.logger.Info().Str(log.FieldEvent, "session.initialized").Msg("signature session initialized")
	}); err != nil {
		_ = sub.Close()
		_ = g.Wait()
		return fmt.Errorf("initialize signature session: %w", err)
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// watch mirrors session notifications into the daemon log.
func (a *App) watch(ctx context.Context, sub bus.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			ev, isEvent := msg.(sigcapt.Event)
			if !isEvent {
				continue
			}
			a.logEvent(ev)
		}
	}
}

func (a *App) logEvent(ev sigcapt.Event) {
	var e *zerolog.Event
	switch ev.Kind {
	case sigcapt.EventNoServiceDetected:
		e = a.logger.Warn()
	case sigcapt.EventCaptureError:
		e = a.logger.Warn().Int("code", ev.Code).Str("message", ev.Message)
	case sigcapt.EventReady, sigcapt.EventRestarting:
		e = a.logger.Info()
	case sigcapt.EventDetailsAvailable:
		e = a.logger.Debug().Str("who", ev.Who).Str("when", ev.When)
	default:
		e = a.logger.Debug()
	}
	e.Str(log.FieldEvent, string(ev.Kind)).
		Uint64(log.FieldGeneration, ev.Generation).
		Msg("session notification")
}
