// Package config implements a text-keyed configuration store: every value
// is stored as a string, and typed accessors parse on read. It is a flat
// key->value map with typed getters, instance-scoped rather than a
// process-wide global registry — a Configuration value is constructed and
// threaded through calls instead of registered into a package-level var.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/saad749/rheem/internal/rheemerrors"
)

// Configuration is a layered, text-keyed key/value store. Lookups check
// values in this layer first, then fall through to parent, mirroring the
// cost model's "built-in / platform defaults / user overrides" layering
// : user overrides are the child, platform defaults the
// parent, built-ins the grandparent.
type Configuration struct {
	values map[string]string
	parent *Configuration
}

// New returns an empty, parentless configuration.
func New() *Configuration {
	return &Configuration{values: make(map[string]string)}
}

// WithDefaults returns a new Configuration carrying this layer's own values
// forward, falling back to parent when a key is absent from them.
func (c *Configuration) WithDefaults(parent *Configuration) *Configuration {
	values := make(map[string]string, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return &Configuration{values: values, parent: parent}
}

// Set stores a raw string value in this layer.
func (c *Configuration) Set(key, value string) {
	c.values[key] = value
}

// Get returns the raw string value for key, searching this layer then
// parents, and reports whether it was found anywhere in the chain.
func (c *Configuration) Get(key string) (string, bool) {
	for cfg := c; cfg != nil; cfg = cfg.parent {
		if v, ok := cfg.values[key]; ok {
			return v, true
		}
	}
	return "", false
}

// GetDefault returns the raw value for key, or def if absent.
func (c *Configuration) GetDefault(key, def string) string {
	if v, ok := c.Get(key); ok {
		return v
	}
	return def
}

// GetString is an alias of GetDefault kept for readability at call sites
// that are clearly reading a string-typed setting.
func (c *Configuration) GetString(key, def string) string {
	return c.GetDefault(key, def)
}

// GetBool parses a boolean-typed key, e.g. rheem.core.optimizer.reoptimize.
func (c *Configuration) GetBool(key string, def bool) (bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, rheemerrors.Mark(rheemerrors.ConfigurationError,
			errors.Wrapf(err, "parsing bool config key %q", key))
	}
	return b, nil
}

// MustGetBool is GetBool without an error return, for call sites that
// already validated the key or are fine defaulting on a parse error.
func (c *Configuration) MustGetBool(key string, def bool) bool {
	b, err := c.GetBool(key, def)
	if err != nil {
		return def
	}
	return b
}

// GetFloat parses a float-typed key, e.g. a cost rate or a GA tunable.
func (c *Configuration) GetFloat(key string, def float64) (float64, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, rheemerrors.Mark(rheemerrors.ConfigurationError,
			errors.Wrapf(err, "parsing float config key %q", key))
	}
	return f, nil
}

// GetInt parses an integer-typed key, e.g. superoptimizations tribe count.
func (c *Configuration) GetInt(key string, def int64) (int64, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, rheemerrors.Mark(rheemerrors.ConfigurationError,
			errors.Wrapf(err, "parsing int config key %q", key))
	}
	return n, nil
}

// GetDuration parses a Go duration string, e.g. a stage timeout hint.
func (c *Configuration) GetDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := c.Get(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, rheemerrors.Mark(rheemerrors.ConfigurationError,
			errors.Wrapf(err, "parsing duration config key %q", key))
	}
	return d, nil
}

// RequireString returns the raw value for key or a ConfigurationError if
// absent anywhere in the chain.
func (c *Configuration) RequireString(key string) (string, error) {
	v, ok := c.Get(key)
	if !ok {
		return "", rheemerrors.Newf(rheemerrors.ConfigurationError, "missing required configuration key %q", key)
	}
	return v, nil
}

// Keys known to the core, collected here so call sites don't sprinkle
// string literals. Platform- and operator-scoped keys (load profile
// expressions) are built with LoadKey.
const (
	KeyReoptimize    = "rheem.core.optimizer.reoptimize"
	KeySkipExecution = "rheem.core.debug.skipexecution"
	KeyLogEnabled    = "rheem.core.log.enabled"
	KeyLogExecutions = "rheem.core.log.executions"

	KeyGASampling             = "rheem.profiler.ga.sampling"
	KeyGAMinCardinalityConf   = "rheem.profiler.ga.min-cardinality-confidence"
	KeyGABinning              = "rheem.profiler.ga.binning"
	KeyGAMaxGenerations       = "rheem.profiler.ga.maxgenerations"
	KeyGAMaxStableGenerations = "rheem.profiler.ga.maxstablegenerations"
	KeyGAMinFitness           = "rheem.profiler.ga.minfitness"
	KeyGASuperOptimizations   = "rheem.profiler.ga.superoptimizations"
	KeyGABlocking             = "rheem.profiler.ga.blocking"
	KeyGANoiseFilterMax       = "rheem.profiler.ga.noise-filter.max"
	KeyGANoiseFilterThreshold = "rheem.profiler.ga.noise-filter.threshold"
	KeyGAIntermediateUpdate   = "rheem.profiler.ga.intermediateupdate"
	KeyGAPopulationSize       = "rheem.profiler.ga.population"
	KeyGAMutationRate         = "rheem.profiler.ga.mutationrate"
	KeyGAEliteFraction        = "rheem.profiler.ga.elitefraction"
	KeyGASeed                 = "rheem.profiler.ga.seed"
)

// LoadKey builds a rheem.<platform>.<op>.load configuration key.
func LoadKey(platform, operatorClass string) string {
	return "rheem." + platform + "." + operatorClass + ".load"
}
