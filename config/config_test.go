package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, ":8645", cfg.ListenAddress)
	require.Equal(t, "./clearhold-data", cfg.DataDir)
	require.Equal(t, "local", cfg.Environment)
	require.Equal(t, uint32(250), cfg.PlatformFeeBps)
	require.Equal(t, uint32(200), cfg.ProtocolFeeBps)
	require.Equal(t, uint32(50), cfg.ReferrerFeeBps)
	require.Equal(t, uint32(30), cfg.ExpiryWindowDays)

	// The generated file loads back identically.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddress = \":9000\"\nPlatformFeeBps = 100\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, uint32(100), cfg.PlatformFeeBps)
	require.Equal(t, uint32(200), cfg.ProtocolFeeBps)
	require.Equal(t, "./clearhold-data", cfg.DataDir)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	badFee := filepath.Join(dir, "fee.toml")
	require.NoError(t, os.WriteFile(badFee, []byte("PlatformFeeBps = 10001\n"), 0o644))
	_, err := Load(badFee)
	require.Error(t, err)

	badAddr := filepath.Join(dir, "addr.toml")
	require.NoError(t, os.WriteFile(badAddr, []byte("AdminAddress = \"0x1234\"\n"), 0o644))
	_, err = Load(badAddr)
	require.Error(t, err)

	badStake := filepath.Join(dir, "stake.toml")
	require.NoError(t, os.WriteFile(badStake, []byte("MinArbitratorStake = \"not-a-number\"\n"), 0o644))
	_, err = Load(badStake)
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	want := [20]byte{0xde, 0xad, 0xbe, 0xef}
	hexAddr := "deadbeef00000000000000000000000000000000"

	got, err := ParseAddress(hexAddr)
	require.NoError(t, err)
	require.Equal(t, want, got)

	prefixed, err := ParseAddress(" 0x" + hexAddr + " ")
	require.NoError(t, err)
	require.Equal(t, want, prefixed)

	_, err = ParseAddress("zz")
	require.Error(t, err)
	_, err = ParseAddress("0x1234")
	require.Error(t, err)
}

func TestMinStake(t *testing.T) {
	cfg := &Config{MinArbitratorStake: "1000000000000000000"}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	require.Zero(t, cfg.MinStake().Cmp(want))

	broken := &Config{MinArbitratorStake: "bogus"}
	require.Zero(t, broken.MinStake().Sign())
}
