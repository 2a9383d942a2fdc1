package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livecap.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	// 指向一个不存在的文件名，只命中默认值
	l := New(WithName("does-not-exist"), WithPaths(t.TempDir()))
	cfg, err := l.Load()
	assert.NoError(err)

	assert.Equal(Default(), cfg)
	assert.Equal("afpacket", cfg.Engine)
	assert.Equal(65535, cfg.SnapLen)
	assert.True(cfg.Immediate)
}

func TestLoadFile(t *testing.T) {
	assert := assert.New(t)

	path := writeConfig(t, `
source: eth0
engine: pcap
snap_len: 262144
buffer_size: 4194304
promiscuous: true
filter: "tcp and port 443"
log:
  level: debug
`)

	cfg, err := New(WithFile(path)).Load()
	assert.NoError(err)
	assert.Equal("eth0", cfg.Source)
	assert.Equal("pcap", cfg.Engine)
	assert.Equal(262144, cfg.SnapLen)
	assert.Equal(4194304, cfg.BufferSize)
	assert.True(cfg.Promiscuous)
	assert.Equal("tcp and port 443", cfg.Filter)
	assert.Equal("debug", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	assert := assert.New(t)

	path := writeConfig(t, "source: eth0\nsnap_len: 1500\n")
	t.Setenv("LIVECAP_SNAP_LEN", "9000")
	t.Setenv("LIVECAP_SOURCE", "wlan0")

	cfg, err := New(WithFile(path)).Load()
	assert.NoError(err)
	assert.Equal("wlan0", cfg.Source)
	assert.Equal(9000, cfg.SnapLen)
}

func TestLoadRejectsInvalid(t *testing.T) {
	assert := assert.New(t)

	cases := map[string]string{
		"empty source":    "source: \"\"\n",
		"unknown engine":  "engine: dpdk\n",
		"zero snap len":   "snap_len: 0\n",
		"negative buffer": "buffer_size: -1\n",
	}
	for name, content := range cases {
		path := writeConfig(t, content)
		_, err := New(WithFile(path)).Load()
		assert.Error(err, name)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	assert := assert.New(t)

	path := writeConfig(t, "source: [unclosed\n")
	_, err := New(WithFile(path)).Load()
	assert.Error(err)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "livecap.yaml")
	assert.NoError(WriteDefault(path))

	cfg, err := New(WithFile(path)).Load()
	assert.NoError(err)
	assert.Equal(Default(), cfg)
}

func TestEnvPrefixOverride(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("SNIFFER_ENGINE", "pcap")
	l := New(
		WithName("does-not-exist"),
		WithPaths(t.TempDir()),
		WithEnvPrefix("SNIFFER"),
	)
	cfg, err := l.Load()
	assert.NoError(err)
	assert.Equal("pcap", cfg.Engine)
}
