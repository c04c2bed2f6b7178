package dache_test

import (
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache"
)

func TestConfig_ValidateRejectsAutoDetectWithoutMulticast(t *testing.T) {
	cfg := dache.NewConfig()
	dache.ApplyOptions(&cfg, dache.WithSerializerName("default"))
	cfg.AutoDetectCacheHosts = true

	err := cfg.Validate()
	assert.NotNil(t, err)
}

func TestConfig_ValidateAcceptsAutoDetectWithMulticast(t *testing.T) {
	cfg := dache.NewConfig()
	dache.ApplyOptions(&cfg, dache.WithAutoDetectCacheHosts("239.0.0.1", 9999))

	err := cfg.Validate()
	assert.Nil(t, err)
}

func TestConfig_ValidateRejectsUnknownSerializer(t *testing.T) {
	cfg := dache.NewConfig()
	dache.ApplyOptions(&cfg, dache.WithSerializerName("does-not-exist"))

	err := cfg.Validate()
	assert.NotNil(t, err)
}

func TestConfig_OptionsLayerOverDefaults(t *testing.T) {
	cfg := dache.NewConfig()
	dache.ApplyOptions(&cfg, dache.WithHostRedundancyLayers(2))

	assert.Equal(t, 2, cfg.HostRedundancyLayers)
}
