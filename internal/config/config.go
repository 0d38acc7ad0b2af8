/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the operator's settings from flags, SYNCSECRET_*
// environment variables and an optional config file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SYNCSECRET"

const (
	flagConfig                  = "config"
	flagKubeconfig              = "kubeconfig"
	flagLogLevel                = "log-level"
	flagLogFormat               = "log-format"
	flagMetricsBindAddress      = "metrics-bind-address"
	flagHealthProbeBindAddress  = "health-probe-bind-address"
	flagLeaderElect             = "leader-elect"
	flagLeaderElectionNamespace = "leader-election-namespace"
	flagFieldManager            = "field-manager"
)

// Config holds the settings of the run command.
type Config struct {
	Kubeconfig              string
	LogLevel                string
	LogFormat               string
	MetricsBindAddress      string
	HealthProbeBindAddress  string
	LeaderElect             bool
	LeaderElectionNamespace string
	FieldManager            string
}

// BindFlags declares the run command's flags on fs.
func BindFlags(fs *pflag.FlagSet, defaultFieldManager string) {
	fs.String(flagConfig, "", "Path to a YAML or JSON config file.")
	fs.String(flagKubeconfig, "", "Path to a kubeconfig. Defaults to $KUBECONFIG, ~/.kube/config, then in-cluster config.")
	fs.String(flagLogLevel, "info", "Log verbosity: trace, debug, info, warn or error.")
	fs.String(flagLogFormat, "json", "Log encoding: json or console.")
	fs.String(flagMetricsBindAddress, "0", "The address the metrics endpoint binds to. Use 0 to disable it.")
	fs.String(flagHealthProbeBindAddress, ":8081", "The address the probe endpoint binds to.")
	fs.Bool(flagLeaderElect, false, "Enable leader election, ensuring only one active controller.")
	fs.String(flagLeaderElectionNamespace, "", "Namespace of the leader election lease. Defaults to the in-cluster namespace.")
	fs.String(flagFieldManager, defaultFieldManager, "Server-side apply field manager used for replica writes.")
}

// Load resolves the flags in fs against the environment and the config file.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(flagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Kubeconfig:              v.GetString(flagKubeconfig),
		LogLevel:                v.GetString(flagLogLevel),
		LogFormat:               v.GetString(flagLogFormat),
		MetricsBindAddress:      v.GetString(flagMetricsBindAddress),
		HealthProbeBindAddress:  v.GetString(flagHealthProbeBindAddress),
		LeaderElect:             v.GetBool(flagLeaderElect),
		LeaderElectionNamespace: v.GetString(flagLeaderElectionNamespace),
		FieldManager:            v.GetString(flagFieldManager),
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise only fail at startup.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.FieldManager == "" {
		errs = append(errs, errors.New("field manager must not be empty"))
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps a level name to a zap level. "trace" is one step more
// verbose than debug, which surfaces logr V(2) messages.
func ParseLogLevel(level string) (zapcore.Level, error) {
	if strings.EqualFold(level, "trace") {
		return zapcore.DebugLevel - 1, nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return l, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// ZapOptions returns controller-runtime logger options for the configured
// level and format. The level has already been validated by Load.
func (c *Config) ZapOptions() []zap.Opts {
	level, _ := ParseLogLevel(c.LogLevel)
	opts := []zap.Opts{zap.Level(level)}
	if c.LogFormat == "console" {
		opts = append(opts, zap.ConsoleEncoder())
	} else {
		opts = append(opts, zap.JSONEncoder())
	}
	return opts
}

// RESTConfig loads cluster credentials from the kubeconfig, falling back to
// the in-cluster service account when no kubeconfig is usable.
func (c *Config) RESTConfig() (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = c.Kubeconfig

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err == nil {
		return cfg, nil
	}

	inCluster, inClusterErr := rest.InClusterConfig()
	if inClusterErr != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w; loading in-cluster config: %w", err, inClusterErr)
	}
	return inCluster, nil
}
