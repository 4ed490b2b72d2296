package milvusopts

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsAndValidate(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--milvus.address=milvus:19530", "--milvus.timeout=5s"}))
	assert.Equal(t, "milvus:19530", o.Address)
	assert.Empty(t, o.Validate())

	o.Address = ""
	o.Timeout = 0
	assert.Len(t, o.Validate(), 2)
}

func TestCompleteAPIKeyFromEnv(t *testing.T) {
	t.Setenv("MILVUS_API_KEY", "")
	t.Setenv("PINECONE_API_KEY", "pc-key")

	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "pc-key", o.APIKey)

	t.Setenv("MILVUS_API_KEY", "mv-key")
	o = NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "mv-key", o.APIKey)
}
