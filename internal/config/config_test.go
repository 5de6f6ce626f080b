package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingMountPoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MountPoint = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_BadLoggingLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_MetricsEnabledRequiresAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_MetricsDisabledAllowsEmptyAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = ""
	cfg.Metrics.Namespace = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidate_DownloadAuthEnabledRequiresSigningKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DownloadAuth.Enabled = true
	cfg.DownloadAuth.SigningKey = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_DownloadAuthDisabledAllowsEmptySigningKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DownloadAuth.Enabled = false
	cfg.DownloadAuth.SigningKey = ""
	assert.NoError(t, cfg.Validate())
}
