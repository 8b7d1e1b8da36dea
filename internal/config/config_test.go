package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(DefaultConfig(), cfg)

	info, err := os.Stat(path)
	req.NoError(err)
	req.Equal(os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	req.NoError(err)
	req.Equal(cfg, again)
}

func TestLoadOrDefault_DoesNotWrite(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadOrDefault(path)

	req.NoError(err)
	req.Equal(DefaultConfig(), cfg)
	_, err = os.Stat(path)
	req.ErrorIs(err, os.ErrNotExist)

	req.NoError(os.WriteFile(path, []byte("horizon_years: 4\n"), 0o600))
	cfg, err = LoadOrDefault(path)
	req.NoError(err)
	req.Equal(4, cfg.HorizonYears)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(`
horizon_years: 5
digest: blake2b-256
pairs:
  - a: " Alice@Example.com "
    b: bob@example.com
  - id: team
    a: carol@example.com
    b: dave@example.org
`), 0o600))

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal(5, cfg.HorizonYears)
	req.Equal("blake2b-256", cfg.Digest)
	req.Equal(defaultListen, cfg.Listen)
	req.Equal(defaultRefresh, cfg.RefreshCron)
	req.Len(cfg.Pairs, 2)
	req.Equal("alice@example.com", cfg.Pairs[0].A)
	req.Equal("alice-bob", cfg.Pairs[0].FileID())
	req.Equal("team", cfg.Pairs[1].FileID())
	req.Nil(cfg.BasicAuth)
}

func TestLoad_EnvOverrides(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("CATCHUP_LISTEN", "0.0.0.0:9000")
	t.Setenv("CATCHUP_HORIZON_YEARS", "3")
	t.Setenv("CATCHUP_DIGEST", "sha3-256")

	cfg, err := Load(path)

	req.NoError(err)
	req.Equal("0.0.0.0:9000", cfg.Listen)
	req.Equal(3, cfg.HorizonYears)
	req.Equal("sha3-256", cfg.Digest)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown digest": "digest: md5\n",
		"bad cron":       "refresh: every day\n",
		"bad pair":       "pairs:\n  - a: not-an-email\n    b: bob@example.com\n",
		"duplicate id":   "pairs:\n  - {id: x, a: a@b.co, b: c@d.co}\n  - {id: x, a: e@f.co, b: g@h.co}\n",
		"bad yaml":       "pairs: [\n",
		"invalid utf8":   "pairs:\n  - a: bob\xff@example.com\n    b: alice@example.com\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := Load(path)

			require.Error(t, err)
		})
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}
	cfg.Pairs = []PairConfig{{A: "alice@example.com", B: "bob@example.com"}}

	req.NoError(cfg.Save(path))

	loaded, err := Load(path)
	req.NoError(err)
	req.Equal(cfg, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	req.NoError(err)
	req.Len(entries, 1)
}

func TestValidate_InvalidUTF8Pair(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pairs = []PairConfig{{A: "Bob\xff@Example.com", B: "alice@example.com"}}
	cfg.Normalize()

	require.Error(t, cfg.Validate())
	require.Equal(t, "Bob\xff@Example.com", cfg.Pairs[0].A)
}
