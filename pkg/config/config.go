// Package config carries the SDK-wide configuration defaults.
//
// Values are read through viper so an embedding application can override them
// from its own configuration sources before building a session.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	// KeyEnvironment selects the deployment environment ("production" or
	// "sandbox").
	KeyEnvironment = "environment"

	// KeyNetworkTimeout bounds every HTTP round-trip.
	KeyNetworkTimeout = "network.timeout"

	// KeyDispatchWorkers sizes the dispatch gateway's worker pool.
	KeyDispatchWorkers = "dispatch.workers"

	// KeyDebug enables debug logging.
	KeyDebug = "debug"
)

// Default values.
const (
	DefaultEnvironment     = "production"
	DefaultNetworkTimeout  = 30 * time.Second
	DefaultDispatchWorkers = 8
)

// SetDefaults registers the SDK defaults with viper. Call once at startup,
// before reading any configuration.
func SetDefaults() {
	viper.SetDefault(KeyEnvironment, DefaultEnvironment)
	viper.SetDefault(KeyNetworkTimeout, DefaultNetworkTimeout)
	viper.SetDefault(KeyDispatchWorkers, DefaultDispatchWorkers)
	viper.SetDefault(KeyDebug, false)
}

// Environment returns the configured deployment environment.
func Environment() string {
	return viper.GetString(KeyEnvironment)
}

// NetworkTimeout returns the configured HTTP timeout.
func NetworkTimeout() time.Duration {
	return viper.GetDuration(KeyNetworkTimeout)
}

// DispatchWorkers returns the configured worker pool size.
func DispatchWorkers() int {
	return viper.GetInt(KeyDispatchWorkers)
}
