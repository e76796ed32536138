// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Section names with a known shape. Any other top-level key is a module the
// core only inspects for its "servers" references.
const (
	SectionServers = "servers"
	SectionApp     = "app"
	SectionMongo   = "mongo"
	SectionProxy   = "proxy"
)

// ServerEntry is one named remote host.
type ServerEntry struct {
	Host     string     `mapstructure:"host" yaml:"host" validate:"required"`
	Username string     `mapstructure:"username" yaml:"username" validate:"required"`
	PEM      string     `mapstructure:"pem" yaml:"pem,omitempty"`
	Password string     `mapstructure:"password" yaml:"password,omitempty"`
	Opts     SSHOptions `mapstructure:"opts" yaml:"opts,omitempty"`
}

// SSHOptions are passed through to the session broker. Keys the broker does
// not know end up in Extra.
type SSHOptions struct {
	Port       int            `mapstructure:"port" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Timeout    time.Duration  `mapstructure:"timeout" yaml:"timeout,omitempty" validate:"omitempty,min=0"`
	KnownHosts string         `mapstructure:"knownHosts" yaml:"knownHosts,omitempty"`
	Extra      map[string]any `mapstructure:",remain" yaml:"-"`
}

// BuildOptions drive one build. The value is built once per invocation and
// not changed afterwards.
type BuildOptions struct {
	BuildLocation           string         `mapstructure:"buildLocation" yaml:"buildLocation,omitempty"`
	Executable              string         `mapstructure:"executable" yaml:"executable,omitempty"`
	Debug                   bool           `mapstructure:"debug" yaml:"debug,omitempty"`
	MobileSettings          map[string]any `mapstructure:"mobileSettings" yaml:"mobileSettings,omitempty"`
	ServerOnly              bool           `mapstructure:"serverOnly" yaml:"serverOnly,omitempty"`
	Server                  string         `mapstructure:"server" yaml:"server,omitempty" validate:"omitempty,url"`
	AllowIncompatibleUpdate bool           `mapstructure:"allowIncompatibleUpdate" yaml:"allowIncompatibleUpdate,omitempty"`
}

// DockerOptions select the runtime image on the remote hosts.
type DockerOptions struct {
	Image string   `mapstructure:"image" yaml:"image,omitempty"`
	Args  []string `mapstructure:"args" yaml:"args,omitempty"`
}

// AppConfig is the "app" section.
type AppConfig struct {
	Name                    string         `mapstructure:"name" yaml:"name" validate:"required,max=64"`
	Path                    string         `mapstructure:"path" yaml:"path" validate:"required"`
	Servers                 any            `mapstructure:"servers" yaml:"servers" validate:"required"`
	BuildOptions            BuildOptions   `mapstructure:"buildOptions" yaml:"buildOptions,omitempty"`
	Env                     map[string]any `mapstructure:"env" yaml:"env,omitempty"`
	Docker                  DockerOptions  `mapstructure:"docker" yaml:"docker,omitempty"`
	DeployCheckWaitTime     int            `mapstructure:"deployCheckWaitTime" yaml:"deployCheckWaitTime,omitempty" validate:"omitempty,min=0"`
	EnableUploadProgressBar bool           `mapstructure:"enableUploadProgressBar" yaml:"enableUploadProgressBar,omitempty"`
}

// MongoConfig is the "mongo" section.
type MongoConfig struct {
	Version string `mapstructure:"version" yaml:"version,omitempty"`
	Port    int    `mapstructure:"port" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Oplog   bool   `mapstructure:"oplog" yaml:"oplog,omitempty"`
	DBName  string `mapstructure:"dbName" yaml:"dbName,omitempty"`
	Servers any    `mapstructure:"servers" yaml:"servers" validate:"required"`
}

// SSLOptions configure TLS termination on the proxy.
type SSLOptions struct {
	Crt              string `mapstructure:"crt" yaml:"crt,omitempty"`
	Key              string `mapstructure:"key" yaml:"key,omitempty"`
	LetsEncryptEmail string `mapstructure:"letsEncryptEmail" yaml:"letsEncryptEmail,omitempty" validate:"omitempty,email"`
	ForceSSL         bool   `mapstructure:"forceSSL" yaml:"forceSSL,omitempty"`
}

// ProxyConfig is the "proxy" section.
type ProxyConfig struct {
	Domains string     `mapstructure:"domains" yaml:"domains" validate:"required"`
	SSL     SSLOptions `mapstructure:"ssl" yaml:"ssl,omitempty"`
}

// Decode converts a raw section value into out. It returns the keys present
// in the input that out has no field for. Decoding continues past fields
// that fail, so out holds every field that did decode even when err is set;
// unknown keys are only tracked for objects that decoded cleanly.
func Decode(input any, out any) ([]string, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		Metadata:   &md,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	err = dec.Decode(input)
	sort.Strings(md.Unused)
	return md.Unused, err
}
