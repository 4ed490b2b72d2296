// Package pool provides worker pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/rubric-grader/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 协程池配置。
type Options struct {
	// Capacity 池容量，所有请求共享。
	Capacity int `json:"capacity" mapstructure:"capacity"`

	// ExpiryDuration 空闲 worker 回收时间。
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`

	// PreAlloc 是否预分配 worker 队列。
	PreAlloc bool `json:"pre-alloc" mapstructure:"pre-alloc"`

	// MaxBlockingTasks 最大阻塞任务数，0 表示不限。
	MaxBlockingTasks int `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Capacity:       16,
		ExpiryDuration: 10 * time.Second,
	}
}

// AddFlags registers the pool.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.Capacity, p+"capacity", o.Capacity, "Embedding worker pool capacity.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.PreAlloc, p+"pre-alloc", o.PreAlloc, "Pre-allocate the worker queue.")
	fs.IntVar(&o.MaxBlockingTasks, p+"max-blocking-tasks", o.MaxBlockingTasks, "Maximum tasks waiting for a worker, 0 for unlimited.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.capacity must be positive"))
	}
	if o.MaxBlockingTasks < 0 {
		errs = append(errs, fmt.Errorf("pool.max-blocking-tasks must not be negative"))
	}
	return errs
}
