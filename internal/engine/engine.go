package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"

	"ovirt-import/internal/config"
	"ovirt-import/internal/domain"
	"ovirt-import/internal/logger"
)

var (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
)

// Engine is the subset of the oVirt engine API the import workflow drives.
type Engine interface {
	// FindStorageDomain returns the first storage domain whose name matches,
	// or an error wrapping domain.ErrStorageDomainNotFound.
	FindStorageDomain(ctx context.Context, name string) (*domain.StorageDomain, error)
	// FindCluster returns the first cluster whose name matches, or an error
	// wrapping domain.ErrClusterNotFound.
	FindCluster(ctx context.Context, name string) (*domain.Cluster, error)
	// ListExportedVMs lists the VMs staged on an export storage domain, in
	// the order the engine returns them.
	ListExportedVMs(ctx context.Context, exportDomainID string) ([]domain.ExportedVM, error)
	ImportVM(ctx context.Context, req domain.ImportRequest) error
	Close() error
}

// Opener opens an authenticated engine session.
type Opener func(ctx context.Context, cfg *config.EngineConfig) (Engine, error)

// WithEngine opens a session, hands it to fn and closes it on every path.
// A close failure is merged into the returned error.
func WithEngine(ctx context.Context, open Opener, cfg *config.EngineConfig, fn func(Engine) error) (err error) {
	log := logger.NewLogger("Engine")

	e, err := open(ctx, cfg)
	if err != nil {
		log.Error("Failed to open engine session to %s: %v", cfg.URL, err)
		return fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	log.Debug("Engine session opened: %s as %s", cfg.URL, cfg.Username)

	defer func() {
		multierr.AppendInvoke(&err, multierr.Close(e))
		log.Debug("Engine session closed: %s", cfg.URL)
	}()

	return fn(e)
}

// SearchByName builds an engine search query matching an exact name.
func SearchByName(name string) string {
	if strings.ContainsAny(name, " \t\"") {
		return fmt.Sprintf("name=%q", name)
	}
	return "name=" + name
}

// FirstMatch returns the first item, or notFound wrapped with the searched name.
func FirstMatch[T any](items []T, notFound error, name string) (T, error) {
	if len(items) == 0 {
		var zero T
		return zero, fmt.Errorf("%w: %q", notFound, name)
	}
	return items[0], nil
}

// IsNotFound reports whether err is one of the lookup-miss errors.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrStorageDomainNotFound) || errors.Is(err, domain.ErrClusterNotFound)
}

// Retry runs a read-only operation up to retries extra times with
// exponential backoff. Lookup misses are not retried.
func Retry(ctx context.Context, retries int, op func() error) error {
	if retries <= 0 {
		return op()
	}

	log := logger.NewLogger("Engine")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval

	attempt := func() error {
		err := op()
		if err != nil && IsNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("Engine call failed, retrying in %s: %v", wait, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)
	return backoff.RetryNotify(attempt, b, notify)
}
