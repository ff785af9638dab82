package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresetsAreValid(t *testing.T) {
	for _, preset := range []Config{MainnetConfig, TestnetConfig, LocalConfig} {
		require.NoError(t, preset.Valid())
	}
}

func TestBuilderFromPreset(t *testing.T) {
	cfg, err := NewBuilder().FromPreset(TestnetNetwork).Build()
	require.NoError(t, err)
	require.Equal(t, TestnetConfig, cfg)
}

func TestBuilderRejectsBadRetryMax(t *testing.T) {
	_, err := NewBuilder().WithFetchRetryMax(0).Build()
	require.ErrorIs(t, err, ErrInvalidRetryMax)
}

func TestBuilderRaisesBackoffCapWithFetchTimeout(t *testing.T) {
	cfg, err := NewBuilder().WithFetchTimeout(30 * time.Second).Build()
	require.NoError(t, err)
	require.GreaterOrEqual(t, cfg.FetchBackoffCap, cfg.FetchTimeout)
}

func TestUnknownPreset(t *testing.T) {
	_, err := Preset(NetworkType("bogus"))
	require.Error(t, err)
}
