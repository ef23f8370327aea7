// Package config loads and validates the resolver's CUE configuration
// document: lock timeout, work-queue batching and notification-sink
// selection, the way the teacher's internal/cli/loader.go validates
// concept and sync specs before anything downstream runs.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/svnmove/internal/model"
)

//go:embed schema.cue
var schemaSrc string

// Config is the resolved, concrete configuration the resolver runs
// with. Every field carries a schema default, so a zero-value document
// is always valid.
type Config struct {
	LockTimeoutMS  int
	WorkQueueBatch int
	NotifySink     string
	BumpDepth      model.UpdateDepth
}

// Default returns the configuration implied by an empty document.
func Default() *Config {
	return &Config{
		LockTimeoutMS:  5000,
		WorkQueueBatch: 64,
		NotifySink:     "stdout",
		BumpDepth:      model.UpdateDepthInfinity,
	}
}

// Load reads a CUE configuration document from path. A missing file is
// not an error: Default() is returned, matching a resolver invoked with
// no --config flag.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a CUE configuration document's bytes against the
// embedded schema and decodes the unified result.
func Parse(data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config: invalid schema: %w", err)
	}

	doc := ctx.CompileBytes(data)
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("config: invalid document: %w", err)
	}

	merged := schema.Unify(doc)
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()

	if v := merged.LookupPath(cue.ParsePath("lock.timeout_ms")); v.Exists() {
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("config: lock.timeout_ms: %w", err)
		}
		cfg.LockTimeoutMS = int(n)
	}
	if v := merged.LookupPath(cue.ParsePath("workqueue.batch_size")); v.Exists() {
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("config: workqueue.batch_size: %w", err)
		}
		cfg.WorkQueueBatch = int(n)
	}
	if v := merged.LookupPath(cue.ParsePath("notify.sink")); v.Exists() {
		s, err := v.String()
		if err != nil {
			return nil, fmt.Errorf("config: notify.sink: %w", err)
		}
		cfg.NotifySink = s
	}
	if v := merged.LookupPath(cue.ParsePath("bump.depth")); v.Exists() {
		s, err := v.String()
		if err != nil {
			return nil, fmt.Errorf("config: bump.depth: %w", err)
		}
		cfg.BumpDepth = model.UpdateDepth(s)
	}

	return cfg, nil
}
