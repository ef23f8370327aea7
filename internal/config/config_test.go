package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/svnmove/internal/model"
)

func TestParse_EmptyDocumentYieldsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesApply(t *testing.T) {
	cfg, err := Parse([]byte(`
lock: timeout_ms: 30000
workqueue: batch_size: 8
notify: sink: "collect"
bump: depth: "empty"
`))
	require.NoError(t, err)
	assert.Equal(t, 30000, cfg.LockTimeoutMS)
	assert.Equal(t, 8, cfg.WorkQueueBatch)
	assert.Equal(t, "collect", cfg.NotifySink)
	assert.Equal(t, model.UpdateDepthEmpty, cfg.BumpDepth)
}

func TestParse_RejectsUnknownSink(t *testing.T) {
	_, err := Parse([]byte(`notify: sink: "carrier-pigeon"`))
	assert.Error(t, err)
}

func TestParse_RejectsNegativeTimeout(t *testing.T) {
	_, err := Parse([]byte(`lock: timeout_ms: -1`))
	assert.Error(t, err)
}

func TestLoad_MissingPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("/nonexistent/path/to/config.cue")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
