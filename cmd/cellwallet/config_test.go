package main

import (
	"path/filepath"
	"testing"

	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/stretchr/testify/require"
)

// TestConfigValidate checks derived paths and option checks.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg := defaultConfig()
	cfg.AppDataDir = dir
	cfg.Network = "testnet"
	require.NoError(t, cfg.validate())

	require.Equal(t, &netparams.TestNetParams, cfg.params)
	require.Equal(t, filepath.Join(dir, "testnet", defaultDBFilename),
		cfg.dbPath)
	require.Equal(t, filepath.Join(dir, defaultLogDirname), cfg.LogDir)
	require.True(t, cfg.feeRate().IsZero())

	testCases := []struct {
		name   string
		modify func(*config)
	}{{
		name:   "unknown network",
		modify: func(c *config) { c.Network = "devnet" },
	}, {
		name:   "empty wallet id",
		modify: func(c *config) { c.WalletID = "" },
	}, {
		name:   "zero log size",
		modify: func(c *config) { c.MaxLogFileSize = 0 },
	}, {
		name: "fee rate above maximum",
		modify: func(c *config) {
			c.FeeRate = 2000
			c.MaxFeeRate = 1000
		},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			cfg.AppDataDir = dir
			tc.modify(&cfg)
			require.Error(t, cfg.validate())
		})
	}
}

// TestFeeRate checks the global fee rate option.
func TestFeeRate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.FeeRate = 2000
	require.Equal(t, ckbunit.NewFeeRate(2000), cfg.feeRate())
}

// TestCleanAndExpandPath checks environment variables are expanded.
func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("CELLWALLET_TEST_DIR", "/tmp/cellwallet")

	require.Equal(t, "/tmp/cellwallet/wallet.db",
		cleanAndExpandPath("$CELLWALLET_TEST_DIR//wallet.db"))
	require.Empty(t, cleanAndExpandPath(""))
}

// TestParseAndSetDebugLevels checks global and per subsystem levels.
func TestParseAndSetDebugLevels(t *testing.T) {
	testCases := []struct {
		name    string
		level   string
		wantErr bool
	}{{
		name:  "global",
		level: "debug",
	}, {
		name:  "per subsystem",
		level: "WLLT=trace,KMGR=warn",
	}, {
		name:    "unknown level",
		level:   "loud",
		wantErr: true,
	}, {
		name:    "unknown subsystem",
		level:   "XXXX=info",
		wantErr: true,
	}, {
		name:    "missing level",
		level:   "WLLT,KMGR=info",
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := parseAndSetDebugLevels(tc.level)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
		})
	}

	setLogLevels(defaultLogLevel)
}
