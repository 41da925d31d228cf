package main

import (
	"context"
	"errors"
	"log/slog"
)

// logBridge stands in for the host-application bridge when running
// standalone: degraded-mode notices go to the log instead of a
// web-view postMessage.
type logBridge struct {
	logger *slog.Logger
}

func (b logBridge) PostMessage(data []byte) error {
	b.logger.Warn("host notice", slog.String("payload", string(data)))
	return nil
}

// Standalone runs carry no media engine, thumbnail pipeline or polling
// transport. The detached collaborators fail their retry actions so the
// recovery chains fall through to the flag-based degrade steps.

type unavailablePolling struct{}

func (unavailablePolling) Start(context.Context) error {
	return errors.New("polling fallback not available standalone")
}

type detachedMediaEngine struct{}

func (detachedMediaEngine) Initialize(context.Context) error {
	return errors.New("no media engine attached")
}

func (detachedMediaEngine) RecoverFromError(context.Context) error {
	return errors.New("no media engine attached")
}

func (detachedMediaEngine) ReloadSource(context.Context, string) error {
	return errors.New("no media engine attached")
}

func (detachedMediaEngine) SourceURL() string { return "" }

type detachedThumbnails struct{}

func (detachedThumbnails) ClearCache() error { return nil }

func (detachedThumbnails) Regenerate(context.Context) error {
	return errors.New("no thumbnail pipeline attached")
}

func (detachedThumbnails) FrameExtractionFallback(context.Context) error {
	return errors.New("no thumbnail pipeline attached")
}

func (detachedThumbnails) UsePlaceholders() {}
