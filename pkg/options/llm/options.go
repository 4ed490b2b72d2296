// Package llm provides model provider options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/rubric-grader/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

const defaultOllamaURL = "http://localhost:11434"

// ProviderOptions 定义模型供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, huggingface, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 5xx 重试次数，0 表示不重试。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// singleShot 为 true 时请求只发送一次，MaxRetries 必须为 0。
	singleShot bool
}

// NewEmbeddingOptions 创建默认 Embedding 配置（384 维 all-MiniLM-L6-v2）。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    defaultOllamaURL,
		Model:      "all-minilm",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// NewChatOptions 创建默认 Chat 配置。评分调用只发送一次，不重试。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "ollama",
		BaseURL:    defaultOllamaURL,
		Model:      "llama3",
		Timeout:    120 * time.Second,
		singleShot: true,
	}
}

// ToConfigMap 转换为供应商工厂使用的配置 map。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	retries := o.MaxRetries
	if o.singleShot {
		retries = 0
	}
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": retries,
	}
}

// AddFlags registers provider flags under prefixes, e.g. "chat.model".
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Model provider (ollama, huggingface, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	if !o.singleShot {
		fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Retries on 5xx responses.")
	}
}

// Complete 从环境变量补全 API 密钥；非 ollama 供应商沿用 ollama 默认地址时改用供应商自身默认值。
func (o *ProviderOptions) Complete() error {
	if o.Provider != "ollama" && o.BaseURL == defaultOllamaURL {
		o.BaseURL = ""
	}
	if o.APIKey != "" {
		return nil
	}
	switch o.Provider {
	case "openai":
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	case "huggingface":
		o.APIKey = os.Getenv("HF_TOKEN")
	}
	return nil
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	switch {
	case o.MaxRetries < 0:
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	case o.singleShot && o.MaxRetries != 0:
		errs = append(errs, fmt.Errorf("max-retries is not supported here, requests are sent once"))
	}
	return errs
}
