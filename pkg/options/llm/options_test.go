package llm

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedFlags(t *testing.T) {
	emb, chat := NewEmbeddingOptions(), NewChatOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	emb.AddFlags(fs, "embedding")
	chat.AddFlags(fs, "chat")

	require.NoError(t, fs.Parse([]string{"--embedding.provider=huggingface", "--chat.model=llama3:8b"}))
	assert.Equal(t, "huggingface", emb.Provider)
	assert.Equal(t, "llama3:8b", chat.Model)
	assert.Equal(t, 0, chat.MaxRetries)

	assert.NotNil(t, fs.Lookup("embedding.max-retries"))
	assert.Nil(t, fs.Lookup("chat.max-retries"))
	assert.Error(t, fs.Parse([]string{"--chat.max-retries=2"}))
}

func TestChatOptionsNeverRetry(t *testing.T) {
	o := NewChatOptions()
	o.MaxRetries = 2

	assert.Equal(t, 0, o.ToConfigMap()["max_retries"])
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "max-retries")

	emb := NewEmbeddingOptions()
	emb.MaxRetries = 3
	assert.Empty(t, emb.Validate())
	assert.Equal(t, 3, emb.ToConfigMap()["max_retries"])
}

func TestValidate(t *testing.T) {
	o := NewChatOptions()
	assert.Empty(t, o.Validate())

	o.Provider = "openai"
	o.Timeout = 0
	o.MaxRetries = -1
	assert.Len(t, o.Validate(), 3)
}

func TestCompleteAndConfigMap(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	o := NewChatOptions()
	o.Provider = "openai"
	require.NoError(t, o.Complete())

	m := o.ToConfigMap()
	assert.Equal(t, "sk-test", m["api_key"])
	assert.Empty(t, m["base_url"], "openai falls back to its own endpoint")
	assert.Equal(t, "llama3", m["chat_model"])
	assert.Equal(t, 120*time.Second, m["timeout"])
}
