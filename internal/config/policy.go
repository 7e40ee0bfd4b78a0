package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"callback-queue-service/internal/domain/callback"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadPolicyFile reads a retry policy such as
//
//	version: 1
//	max_retries: 3
//	retry_interval_minutes: 5
func LoadPolicyFile(path string) (callback.RetryPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return callback.RetryPolicy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (callback.RetryPolicy, error) {
	var p callback.RetryPolicy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return callback.RetryPolicy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := ValidatePolicy(p); err != nil {
		return callback.RetryPolicy{}, err
	}
	return p, nil
}

func ValidatePolicy(p callback.RetryPolicy) error {
	if p.Version != callback.CurrentPolicyVersion {
		return fmt.Errorf("unsupported policy version %d (want %d)", p.Version, callback.CurrentPolicyVersion)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if p.RetryIntervalMinutes < 0 {
		return fmt.Errorf("retry_interval_minutes must not be negative")
	}
	return nil
}

// PolicyWatcher serves the active retry policy and reloads it when the
// policy file changes. A file that fails to parse leaves the previous
// policy in place.
type PolicyWatcher struct {
	path    string
	current atomic.Pointer[callback.RetryPolicy]
	logger  *zap.Logger
}

// NewPolicyWatcher starts from the file at path, or from fallback when path
// is empty.
func NewPolicyWatcher(path string, fallback callback.RetryPolicy, logger *zap.Logger) (*PolicyWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &PolicyWatcher{path: path, logger: logger}

	if path == "" {
		if err := ValidatePolicy(fallback); err != nil {
			return nil, err
		}
		w.current.Store(&fallback)
		return w, nil
	}

	p, err := LoadPolicyFile(path)
	if err != nil {
		return nil, err
	}
	w.current.Store(&p)
	return w, nil
}

func (w *PolicyWatcher) Current() callback.RetryPolicy {
	return *w.current.Load()
}

// Reload re-reads the policy file.
func (w *PolicyWatcher) Reload() error {
	if w.path == "" {
		return nil
	}
	p, err := LoadPolicyFile(w.path)
	if err != nil {
		return err
	}

	prev := w.current.Swap(&p)
	if *prev != p {
		w.logger.Info("retry policy reloaded",
			zap.Int("max_retries", p.MaxRetries),
			zap.Int("retry_interval_minutes", p.RetryIntervalMinutes),
		)
	}
	return nil
}

// Run watches the policy file until ctx is done. The parent directory is
// watched so editors that replace the file are picked up too.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(w.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := w.Reload(); err != nil {
					w.logger.Warn("keeping previous retry policy", zap.String("file", w.path), zap.Error(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("policy watcher error", zap.Error(err))
		}
	}
}
