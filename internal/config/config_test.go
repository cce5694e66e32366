package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := NewViper()
	require.NoError(t, ReadFile(v, ""))

	c := Decode(v)
	assert.Equal(t, ".", c.Output)
	assert.Equal(t, DefaultDelay, c.Delay)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 2*time.Second, c.MinDelay())
}

func TestDecode_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "protect.yaml")
	require.NoError(t, os.WriteFile(file, []byte("host: file-host\nuser: file-user\npass: file-pass\ndelay: 7\noutput: /srv/footage\n"), 0600))

	t.Setenv("PROTECT_USER", "env-user")
	t.Setenv("PROTECT_METRICS_FILE", "/var/lib/node_exporter/protect.prom")

	v := NewViper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("host", "", "")
	require.NoError(t, v.BindPFlag(KeyHost, fs.Lookup("host")))
	require.NoError(t, fs.Parse([]string{"--host", "flag-host"}))
	require.NoError(t, ReadFile(v, file))

	c := Decode(v)
	assert.Equal(t, "flag-host", c.Host)
	assert.Equal(t, "env-user", c.User)
	assert.Equal(t, "file-pass", c.Pass)
	assert.Equal(t, 7, c.Delay)
	assert.Equal(t, "/srv/footage", c.Output)
	assert.Equal(t, "/var/lib/node_exporter/protect.prom", c.MetricsFile)
}

func TestReadFile_DefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".protect-dl.yaml"), []byte("host: 192.168.1.1\n"), 0600))

	v := NewViper()
	require.NoError(t, ReadFile(v, ""))
	assert.Equal(t, "192.168.1.1", Decode(v).Host)
}

func TestReadFile_ExplicitMissing(t *testing.T) {
	v := NewViper()
	err := ReadFile(v, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := Config{Host: "10.0.0.1", User: "admin", Pass: "secret", Delay: 2}
	assert.NoError(t, ok.Validate())

	err := Config{Host: "10.0.0.1"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
	assert.Contains(t, err.Error(), "--pass")
	assert.NotContains(t, err.Error(), "--host")

	neg := ok
	neg.Delay = -1
	assert.Error(t, neg.Validate())

	badTZ := ok
	badTZ.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, badTZ.Validate())
}

func TestLocation(t *testing.T) {
	loc, err := Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = Config{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestParseTime(t *testing.T) {
	loc := time.FixedZone("test", -5*3600)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T00:30", time.Date(2024, 1, 1, 0, 30, 0, 0, loc)},
		{"2024-01-01T00:30:15", time.Date(2024, 1, 1, 0, 30, 15, 0, loc)},
		{"2024-01-01 02:00", time.Date(2024, 1, 1, 2, 0, 0, 0, loc)},
		{"2024-01-01 02:00:05", time.Date(2024, 1, 1, 2, 0, 5, 0, loc)},
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, loc)},
		{"2024-01-01T00:30:00Z", time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)},
		{" 2024-01-01T00:30:00+02:00 ", time.Date(2023, 12, 31, 22, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTime(tc.in, loc)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "%s: got %s want %s", tc.in, got, tc.want)
	}

	for _, bad := range []string{"", "yesterday", "01/02/2024", "2024-13-01"} {
		_, err := ParseTime(bad, loc)
		assert.Error(t, err, bad)
	}
}
