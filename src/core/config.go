package core

import (
	"os"
	"time"

	"github.com/please-build/gcfg"
)

// ConfigFileName is the checked-in repo config file.
const ConfigFileName = ".anvilconfig"

// LocalConfigFileName overrides ConfigFileName for settings that shouldn't
// be checked in (machine-local cache paths, credentials).
const LocalConfigFileName = ".anvilconfig.local"

// Configuration is the typed configuration record for everything the core
// and its ambient CLI/metrics/watch layers need. Target-recipe-specific
// options are deliberately not modelled here; they stay as opaque key/value
// pairs carried by the DSL front end's own Context implementation.
type Configuration struct {
	Build struct {
		NumThreads            int    `gcfg:"num-threads"`
		ImplicitInputsMaxDiff int    `gcfg:"implicit-inputs-max-diff-lines"`
		ProcessTimeoutSeconds int    `gcfg:"process-timeout-seconds"`
		OutputEncoding        string `gcfg:"output-encoding"`
	}
	Cache struct {
		Dir string `gcfg:"dir"`
	}
	Metrics struct {
		PushGatewayURL string `gcfg:"push-gateway-url"`
		PushFrequency  int    `gcfg:"push-frequency-seconds"`
	}
	Watch struct {
		DebounceMillis int `gcfg:"debounce-millis"`
	}
}

// DefaultConfiguration returns a Configuration with every field set to the
// value the engine behaves with when the user hasn't overridden it.
func DefaultConfiguration() *Configuration {
	config := &Configuration{}
	config.Build.NumThreads = 1
	config.Build.ImplicitInputsMaxDiff = 30
	config.Build.ProcessTimeoutSeconds = 0 // no timeout
	config.Build.OutputEncoding = "utf-8"
	config.Metrics.PushFrequency = 30
	config.Watch.DebounceMillis = 50
	return config
}

// ReadConfigFiles merges DefaultConfiguration with each of the given files
// in turn, later files overriding earlier ones. Missing files are not an
// error, matching the cascading repo/local/machine config pattern.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := DefaultConfiguration()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, err
		}
	}
	return config, nil
}

func readConfigFile(config *Configuration, filename string) error {
	log.Debug("Reading config from %s...", filename)
	if err := gcfg.ReadFileInto(config, filename); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// ProcessTimeout returns the configured default per-recipe process timeout
// as a time.Duration, or zero if none is configured.
func (c *Configuration) ProcessTimeout() time.Duration {
	if c.Build.ProcessTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Build.ProcessTimeoutSeconds) * time.Second
}
