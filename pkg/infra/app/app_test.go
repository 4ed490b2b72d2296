package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	RAG struct {
		ChunkSize int      `mapstructure:"chunk-size"`
		TopK      int      `mapstructure:"top-k"`
		Tags      []string `mapstructure:"tags"`
	} `mapstructure:"rag"`

	completed bool
	invalid   bool
}

func (o *testOptions) Flags() NamedFlagSets {
	var nfs NamedFlagSets
	fs := nfs.FlagSet("rag")
	fs.IntVar(&o.RAG.ChunkSize, "rag.chunk-size", 700, "chunk size")
	fs.IntVar(&o.RAG.TopK, "rag.top-k", 5, "top k")
	fs.StringSliceVar(&o.RAG.Tags, "rag.tags", nil, "tags")
	nfs.FlagSet("server").StringVar(&o.Server.Addr, "server.addr", ":8000", "addr")
	return nfs
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid")
	}
	return nil
}

func TestAppConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "testapp.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
rag:
  chunk-size: 500
  top-k: 3
  tags: [a, b]
server:
  addr: "${TESTAPP_HOST}:9000"
`), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TESTAPP_RAG_TOP_K=8\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TESTAPP_RAG_TOP_K") })
	t.Setenv("TESTAPP_HOST", "localhost")

	opts := &testOptions{}
	var ran bool
	a := NewApp(
		WithName("testapp"),
		WithOptions(opts),
		WithDotEnv(envFile),
		WithNoVersion(),
		WithRunFunc(func(ctx context.Context) error {
			ran = ctx != nil
			return nil
		}),
	)
	a.Command().SetArgs([]string{"--config", cfg, "--rag.chunk-size=900", "--rag.tags=c"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, 900, opts.RAG.ChunkSize, "explicit flag wins")
	assert.Equal(t, 8, opts.RAG.TopK, "env beats config file")
	assert.Equal(t, []string{"c"}, opts.RAG.Tags)
	assert.Equal(t, "localhost:9000", opts.Server.Addr)
}

func TestAppDefaultsWithoutConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	opts := &testOptions{}
	a := NewApp(WithName("testapp-none"), WithOptions(opts), WithNoVersion())
	a.Command().SetArgs(nil)
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, 700, opts.RAG.ChunkSize)
	assert.Equal(t, ":8000", opts.Server.Addr)
}

func TestAppValidationError(t *testing.T) {
	t.Chdir(t.TempDir())

	opts := &testOptions{invalid: true}
	a := NewApp(WithName("testapp-bad"), WithOptions(opts), WithNoVersion(), WithNoConfig())
	a.Command().SetArgs(nil)
	assert.Error(t, a.Command().Execute())
}
