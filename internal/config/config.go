// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Database    Database    `yaml:"database"`
	ValKey      ValKey      `yaml:"valkey"`
	Identity    Identity    `yaml:"identity"`
	Tracker     Tracker     `yaml:"tracker"`
	Housekeeper Housekeeper `yaml:"housekeeper"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"tracker-manager"`
}

// Identity describes the external identity provider whose assertions
// authenticate callers of this service.
type Identity struct {
	IssuerURL string `yaml:"issuerURL"`
	Audience  string `yaml:"audience"`
}

// Tracker describes the fitness provider's OAuth2 endpoints and the client
// registration this deployment uses against them. ClientID, RedirectURI and
// Scopes are mandatory; a deployment missing any of them must refuse to
// initiate flows rather than mint unresolvable state records.
type Tracker struct {
	AuthorizationURL string              `yaml:"authorizationURL"`
	TokenURL         string              `yaml:"tokenURL"`
	APIBaseURL       string              `yaml:"apiBaseURL"`
	ClientID         commoncfg.SourceRef `yaml:"clientID"`
	ClientSecret     commoncfg.SourceRef `yaml:"clientSecret"`
	RedirectURI      string              `yaml:"redirectURI"`
	Scopes           string              `yaml:"scopes" default:"activity weight profile settings"`
	PKCEMethod       string              `yaml:"pkceMethod" default:"S256"`
	StateTTL         time.Duration       `yaml:"stateTTL" default:"10m"`
	SuccessRedirect  string              `yaml:"successRedirect"`
	FailureRedirect  string              `yaml:"failureRedirect"`
}

type Housekeeper struct {
	TriggerInterval time.Duration `yaml:"triggerInterval" default:"5m"`
}
