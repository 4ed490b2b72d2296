// Package milvusopts provides Milvus client options.
package milvusopts

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/rubric-grader/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus connection settings.
type Options struct {
	// Address is host:port of a self-hosted Milvus or the Zilliz Cloud endpoint.
	Address  string `json:"address" mapstructure:"address"`
	Database string `json:"database" mapstructure:"database"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	// APIKey authenticates against managed deployments.
	APIKey  string        `json:"-" mapstructure:"api-key"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
	}
}

// AddFlags registers the milvus.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port or https URL).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Vector store API key (falls back to MILVUS_API_KEY, then PINECONE_API_KEY).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connection timeout.")
}

// Complete fills the API key from the environment when unset.
func (o *Options) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("MILVUS_API_KEY")
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("PINECONE_API_KEY")
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus.address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus.timeout must be positive"))
	}
	return errs
}
