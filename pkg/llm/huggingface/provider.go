// Package huggingface 提供 HuggingFace Inference API 供应商实现。
// 默认 Embedding 模型为 sentence-transformers/all-MiniLM-L6-v2（384 维）。
package huggingface

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/rubric-grader/pkg/llm"
	"github.com/kart-io/rubric-grader/pkg/utils/httpclient"
	"github.com/kart-io/rubric-grader/pkg/utils/json"
)

// ProviderName 注册名。
const ProviderName = "huggingface"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	APIKey     string        `json:"api_key" mapstructure:"api_key"`
	EmbedModel string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	// WaitForModel 模型冷启动时等待而不是返回 503。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		EmbedModel:   "sentence-transformers/all-MiniLM-L6-v2",
		ChatModel:    "meta-llama/Meta-Llama-3-8B-Instruct",
		Timeout:      120 * time.Second,
		MaxRetries:   2,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := configMap["api_key"].(string); ok {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

type embeddingRequest struct {
	Inputs  []string          `json:"inputs"`
	Options *inferenceOptions `json:"options,omitempty"`
}

// Embed 调用 feature-extraction pipeline。
// 句向量模型返回 [][]float32；token 级模型返回 [][][]float32，此时做均值池化。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		req.Options = &inferenceOptions{WaitForModel: true}
	}

	var raw json.RawMessage
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	if err := p.client.PostJSON(ctx, url, p.headers(), req, &raw); err != nil {
		return nil, fmt.Errorf("huggingface embed: %w", err)
	}

	embeddings, err := decodeEmbeddings(raw)
	if err != nil {
		return nil, fmt.Errorf("huggingface embed: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("huggingface embed: got %d embeddings for %d inputs: %w", len(embeddings), len(texts), llm.ErrEmptyResponse)
	}
	return embeddings, nil
}

func decodeEmbeddings(raw []byte) ([][]float32, error) {
	var sentence [][]float32
	if err := json.Unmarshal(raw, &sentence); err == nil {
		return sentence, nil
	}

	var tokens [][][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("decode feature-extraction output: %w", err)
	}
	out := make([][]float32, len(tokens))
	for i, toks := range tokens {
		if len(toks) == 0 {
			continue
		}
		pooled := make([]float32, len(toks[0]))
		for _, tok := range toks {
			for j, v := range tok {
				pooled[j] += v
			}
		}
		for j := range pooled {
			pooled[j] /= float32(len(toks))
		}
		out[i] = pooled
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return llm.FirstEmbedding(p.Embed(ctx, []string{text}))
}

type generationParams struct {
	MaxNewTokens   int  `json:"max_new_tokens,omitempty"`
	DoSample       bool `json:"do_sample"`
	ReturnFullText bool `json:"return_full_text"`
}

type generationRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters generationParams  `json:"parameters"`
	Options    *inferenceOptions `json:"options,omitempty"`
}

type generationResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Chat 将消息拼成单个提示后生成。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.GenerateResponse, error) {
	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("assistant:")
	return p.generate(ctx, sb.String())
}

// Generate 单轮生成。关闭采样（贪心解码），等价于温度 0。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	if systemPrompt != "" {
		prompt = systemPrompt + "\n\n" + prompt
	}
	return p.generate(ctx, prompt)
}

func (p *Provider) generate(ctx context.Context, prompt string) (*llm.GenerateResponse, error) {
	req := generationRequest{
		Inputs:     prompt,
		Parameters: generationParams{MaxNewTokens: 512},
	}
	if p.config.WaitForModel {
		req.Options = &inferenceOptions{WaitForModel: true}
	}

	var resp []generationResponse
	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.ChatModel)
	if err := p.client.PostJSON(ctx, url, p.headers(), req, &resp); err != nil {
		return nil, fmt.Errorf("huggingface generate: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("huggingface generate: %w", llm.ErrEmptyResponse)
	}
	return &llm.GenerateResponse{Content: resp[0].GeneratedText}, nil
}

func (p *Provider) headers() map[string]string {
	if p.config.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.config.APIKey}
}

var _ llm.Provider = (*Provider)(nil)
