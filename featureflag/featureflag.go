package featureflag

import "strings"

// FeatureFlag is a lookup map for the features enabled on a Wayfinder server.
type FeatureFlag map[Flag]struct{}

// New returns feature flags initialized with a list of flag names. Names are
// trimmed and upper-cased, empty ones are skipped.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		flag := normalize(Flag(f))
		if flag == "" {
			continue
		}
		featureFlag[flag] = struct{}{}
	}
	return featureFlag
}

// IsSet reports whether the flag is set. The flag name is matched the same
// way New stores it.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[normalize(flag)]
	return ok
}

// IfSet runs function `do` if flag is set in the feature flags
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		return
	}
	do()
}

// IfNotSet runs function `do` if flag is not set in the feature flags
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		return
	}
	do()
}

// Unknown returns the set flags that no Wayfinder feature reads.
func (f FeatureFlag) Unknown() []string {
	var unknown []string
	for flag := range f {
		if _, ok := knownFlags[flag]; !ok {
			unknown = append(unknown, string(flag))
		}
	}
	return unknown
}

func normalize(flag Flag) Flag {
	return Flag(strings.ToUpper(strings.TrimSpace(string(flag))))
}
