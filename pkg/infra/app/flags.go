package app

import (
	"github.com/spf13/pflag"
)

// NamedFlagSets stores flag sets in registration order, keyed by section name.
type NamedFlagSets struct {
	// Order is the order of the flag set names.
	Order []string
	// FlagSets stores the flag sets by name.
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the flag set with the given name, creating it on first use.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}

// CliOptions is implemented by the options struct of a command.
type CliOptions interface {
	// Flags returns the option flags grouped by section.
	Flags() NamedFlagSets
	// Complete fills derived and environment provided values.
	Complete() error
	// Validate returns an aggregate of every invalid option.
	Validate() error
}
