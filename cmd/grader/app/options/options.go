// Package options contains flags and options for initializing the grader server.
package options

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	gradersvc "github.com/kart-io/rubric-grader/internal/grader"
	"github.com/kart-io/rubric-grader/pkg/infra/app"
	cacheopts "github.com/kart-io/rubric-grader/pkg/options/cache"
	llmopts "github.com/kart-io/rubric-grader/pkg/options/llm"
	logopts "github.com/kart-io/rubric-grader/pkg/options/logger"
	milvusopts "github.com/kart-io/rubric-grader/pkg/options/milvus"
	poolopts "github.com/kart-io/rubric-grader/pkg/options/pool"
	ragopts "github.com/kart-io/rubric-grader/pkg/options/rag"
	redisopts "github.com/kart-io/rubric-grader/pkg/options/redis"
	grpcopts "github.com/kart-io/rubric-grader/pkg/options/server/grpc"
	httpopts "github.com/kart-io/rubric-grader/pkg/options/server/http"
	tracingopts "github.com/kart-io/rubric-grader/pkg/options/tracing"
)

// RuntimeOptions contains process level settings.
type RuntimeOptions struct {
	// Mode is the gin mode (debug, release, test).
	Mode string `json:"mode" mapstructure:"mode"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// RequestTimeout bounds a single HTTP request, LLM call included.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
}

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// GRPCOptions contains gRPC server configuration.
	GRPCOptions *grpcopts.Options `json:"grpc" mapstructure:"grpc"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RedisOptions contains Redis configuration for the embedding cache.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// CacheOptions contains cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// RAGOptions contains chunking and retrieval configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// PoolOptions contains the embedding worker pool configuration.
	PoolOptions *poolopts.Options `json:"pool" mapstructure:"pool"`

	// RuntimeOptions contains process level settings.
	RuntimeOptions *RuntimeOptions `json:"server" mapstructure:"server"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		GRPCOptions:      grpcopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RedisOptions:     redisopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		RAGOptions:       ragopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
		RuntimeOptions: &RuntimeOptions{
			Mode:            gin.ReleaseMode,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  150 * time.Second,
		},
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.GRPCOptions.AddFlags(fss.FlagSet("grpc"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))

	fs := fss.FlagSet("server")
	fs.StringVar(&o.RuntimeOptions.Mode, "server.mode", o.RuntimeOptions.Mode, "Gin mode (debug, release, test).")
	fs.DurationVar(&o.RuntimeOptions.ShutdownTimeout, "server.shutdown-timeout", o.RuntimeOptions.ShutdownTimeout, "Graceful shutdown timeout.")
	fs.DurationVar(&o.RuntimeOptions.RequestTimeout, "server.request-timeout", o.RuntimeOptions.RequestTimeout, "Per-request timeout, LLM call included.")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.MilvusOptions.Complete(); err != nil {
		return fmt.Errorf("milvus: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.GRPCOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	if o.RAGOptions.Backend == ragopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	if o.CacheOptions.Enabled {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.RuntimeOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Validate validates the runtime options.
func (o *RuntimeOptions) Validate() []error {
	var errs []error
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("server.mode %q is not one of debug, release, test", o.Mode))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown-timeout must be positive"))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.request-timeout must be positive"))
	}
	return errs
}

// Config builds a gradersvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*gradersvc.Config, error) {
	return &gradersvc.Config{
		HTTPOptions:      o.HTTPOptions,
		GRPCOptions:      o.GRPCOptions,
		LogOptions:       o.LogOptions,
		TracingOptions:   o.TracingOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RedisOptions:     o.RedisOptions,
		CacheOptions:     o.CacheOptions,
		RAGOptions:       o.RAGOptions,
		PoolOptions:      o.PoolOptions,
		Mode:             o.RuntimeOptions.Mode,
		ShutdownTimeout:  o.RuntimeOptions.ShutdownTimeout,
		RequestTimeout:   o.RuntimeOptions.RequestTimeout,
	}, nil
}
