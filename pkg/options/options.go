// Package options defines the interface every option group implements and
// the helpers used to build prefixed flag names.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate returns every problem found, nil when valid.
	Validate() []error

	// AddFlags registers the group's flags, optionally under prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Join concatenates prefixes with "." and appends a trailing "." when non-empty,
// so Join("chat")+"model" yields "chat.model".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}
