package activities

import (
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/pulse/activity"
	"github.com/teranos/tempo/pulse/jobs"
)

// Set is the configured collection of built-in activities.
type Set struct {
	Commands     []CommandSpec
	Housekeeping HousekeepingConfig
}

// Register validates every activity in set, then registers them all.
// Nothing is registered when any command is invalid. It returns the
// registered type names.
func Register(reg *activity.Registry, store *jobs.Store, set Set) ([]string, error) {
	factories := []activity.Factory{NewHousekeeping(store, set.Housekeeping)}
	seen := map[string]bool{HousekeepingType: true}

	for _, spec := range set.Commands {
		if seen[spec.Name] {
			return nil, errors.Newf("command %s: duplicate activity type", spec.Name)
		}
		seen[spec.Name] = true

		f, err := NewCommand(spec)
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}

	types := make([]string, 0, len(factories))
	for _, f := range factories {
		typ, err := reg.Register(f)
		if err != nil {
			return types, err
		}
		types = append(types, typ)
	}
	return types, nil
}

// Sync re-registers set after a configuration change and unregisters the
// types in previous that set no longer defines, so their pending recurring
// rows are dropped by the next reconciliation.
func Sync(reg *activity.Registry, store *jobs.Store, previous []string, set Set) ([]string, error) {
	types, err := Register(reg, store, set)
	if err != nil {
		return previous, err
	}
	current := make(map[string]bool, len(types))
	for _, t := range types {
		current[t] = true
	}
	for _, t := range previous {
		if !current[t] {
			reg.Unregister(t)
		}
	}
	return types, nil
}
