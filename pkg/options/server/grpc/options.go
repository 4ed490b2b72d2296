// Package grpc provides gRPC server options.
package grpc

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/rubric-grader/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains gRPC server configuration.
type Options struct {
	Addr             string `json:"addr" mapstructure:"addr"`
	MaxRecvMsgSize   int    `json:"max-recv-msg-size" mapstructure:"max-recv-msg-size"`
	MaxSendMsgSize   int    `json:"max-send-msg-size" mapstructure:"max-send-msg-size"`
	EnableReflection bool   `json:"enable-reflection" mapstructure:"enable-reflection"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Addr:             ":9090",
		MaxRecvMsgSize:   16 * 1024 * 1024,
		MaxSendMsgSize:   16 * 1024 * 1024,
		EnableReflection: true,
	}
}

// AddFlags registers the grpc.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "grpc."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "gRPC bind address.")
	fs.IntVar(&o.MaxRecvMsgSize, p+"max-recv-msg-size", o.MaxRecvMsgSize, "Max receive message size in bytes.")
	fs.IntVar(&o.MaxSendMsgSize, p+"max-send-msg-size", o.MaxSendMsgSize, "Max send message size in bytes.")
	fs.BoolVar(&o.EnableReflection, p+"enable-reflection", o.EnableReflection, "Enable server reflection.")
}

// Validate validates the gRPC options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("grpc.addr cannot be empty"))
	}
	if o.MaxRecvMsgSize <= 0 || o.MaxSendMsgSize <= 0 {
		errs = append(errs, fmt.Errorf("grpc message size limits must be positive"))
	}
	return errs
}
