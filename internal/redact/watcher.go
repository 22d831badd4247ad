package redact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"codegov/internal/logging"
)

// LoadPolicyFile parses a YAML list of policies.
func LoadPolicyFile(path string) ([]*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var policies []*Policy
	if err := yaml.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return policies, nil
}

// ReplaceCustom swaps the custom (file-loaded) policies while keeping
// the built-in set intact. Built-ins always evaluate first.
func (r *Redactor) ReplaceCustom(policies []*Policy) error {
	for _, p := range policies {
		if err := p.compile(); err != nil {
			return err
		}
	}
	builtin := len(defaultPolicies())
	r.mu.Lock()
	defer r.mu.Unlock()
	keep := r.policies
	if len(keep) > builtin {
		keep = keep[:builtin]
	}
	// Fresh backing array: in-flight scans hold the old slice header and
	// keep iterating it unchanged.
	next := make([]*Policy, 0, builtin+len(policies))
	next = append(next, keep...)
	next = append(next, policies...)
	r.policies = next
	return nil
}

// Watcher hot-reloads the custom policy file when it changes on disk.
// Rapid saves are debounced so editors that write twice do not trigger
// duplicate reloads.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	redactor *Redactor
	path     string
	lastSeen time.Time
	debounce time.Duration
	running  bool
}

// NewWatcher creates a watcher for the given policy file.
func NewWatcher(path string, r *Redactor) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		redactor: r,
		path:     path,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs until the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: editors replace files by rename.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch policy dir: %w", err)
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.watcher.Close()
	log := logging.Get(logging.CategoryRedact)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.mu.Lock()
			now := time.Now()
			if now.Sub(w.lastSeen) < w.debounce {
				w.mu.Unlock()
				continue
			}
			w.lastSeen = now
			w.mu.Unlock()

			policies, err := LoadPolicyFile(w.path)
			if err != nil {
				log.Error("policy reload failed: %v", err)
				continue
			}
			if err := w.redactor.ReplaceCustom(policies); err != nil {
				log.Error("policy reload rejected: %v", err)
				continue
			}
			log.Info("reloaded %d custom policies from %s", len(policies), w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("policy watcher error: %v", err)
		}
	}
}
