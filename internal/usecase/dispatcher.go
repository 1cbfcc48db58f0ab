package usecase

import (
	"io"
	"log/slog"
	"sync"

	"deskpet/internal/domain"
	"deskpet/internal/ports"
)

// ConfigDispatcher delivers the session credential to the UI surface once
// the backend is ready, the surface has loaded and a credential exists.
type ConfigDispatcher struct {
	target ports.ConfigTarget
	logger *slog.Logger

	mu        sync.Mutex
	cred      domain.Credential
	readiness domain.Readiness
}

func NewConfigDispatcher(target ports.ConfigTarget, logger *slog.Logger) *ConfigDispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ConfigDispatcher{
		target: target,
		logger: logger.With("component", "dispatcher"),
	}
}

// SetCredential stores a freshly issued credential. A new credential has
// never been delivered.
func (d *ConfigDispatcher) SetCredential(cred domain.Credential) bool {
	d.mu.Lock()
	d.cred = cred
	d.readiness.ConfigDelivered = false
	d.mu.Unlock()

	d.logger.Debug("credential set", "credential", cred.Redacted())
	return d.AttemptDelivery()
}

func (d *ConfigDispatcher) NotifyBackendReady() bool {
	d.mu.Lock()
	d.readiness.BackendReady = true
	d.mu.Unlock()
	return d.AttemptDelivery()
}

// NotifyUISurfaceLoading marks a surface reload in progress. The reload drops
// every UI-side connection, so the credential must be delivered again.
func (d *ConfigDispatcher) NotifyUISurfaceLoading() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readiness.SurfaceReady = false
	d.readiness.ConfigDelivered = false
}

func (d *ConfigDispatcher) NotifyUISurfaceLoaded() bool {
	d.mu.Lock()
	d.readiness.SurfaceReady = true
	d.mu.Unlock()
	return d.AttemptDelivery()
}

// AttemptDelivery pushes the credential to the target when every readiness
// condition holds and it has not been delivered yet. It reports whether a
// delivery happened.
func (d *ConfigDispatcher) AttemptDelivery() bool {
	d.mu.Lock()
	switch {
	case !d.cred.Valid():
		d.mu.Unlock()
		d.logger.Debug("delivery deferred", "reason", "no credential")
		return false
	case !d.readiness.BackendReady:
		d.mu.Unlock()
		d.logger.Debug("delivery deferred", "reason", "backend not ready")
		return false
	case !d.readiness.SurfaceReady:
		d.mu.Unlock()
		d.logger.Debug("delivery deferred", "reason", "surface not loaded")
		return false
	case d.readiness.ConfigDelivered:
		d.mu.Unlock()
		return false
	}
	d.readiness.ConfigDelivered = true
	cred := d.cred
	d.mu.Unlock()

	d.logger.Info("delivering session config", "credential", cred.Redacted())
	if d.target != nil {
		d.target.DeliverConfig(cred)
	}
	return true
}

// Redeliver forces another delivery of the current credential.
func (d *ConfigDispatcher) Redeliver() bool {
	d.mu.Lock()
	d.readiness.ConfigDelivered = false
	d.mu.Unlock()
	return d.AttemptDelivery()
}

func (d *ConfigDispatcher) Readiness() domain.Readiness {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readiness
}
