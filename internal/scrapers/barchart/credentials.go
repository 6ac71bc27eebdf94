package barchart

import (
	"errors"
	"fmt"
	"os"
)

// ErrConfig means the credentials are missing or unusable.
var ErrConfig = errors.New("barchart credentials are not configured")

const (
	EnvUsername = "BARCHART_USERNAME"
	EnvPassword = "BARCHART_PASSWORD"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CredentialProvider supplies the account used to log in.
//
// note: fault injection point
type CredentialProvider interface {
	Credentials() (Credentials, error)
}

// ConfigCredentials reads credentials from the configuration file, the
// environment variables EnvUsername and EnvPassword take priority.
type ConfigCredentials struct {
	Config Credentials
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (c ConfigCredentials) Credentials() (Credentials, error) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	out := c.Config
	if username := getenv(EnvUsername); username != "" {
		out.Username = username
	}
	if password := getenv(EnvPassword); password != "" {
		out.Password = password
	}

	switch {
	case out.Username == "":
		return Credentials{}, fmt.Errorf("%w: username is empty (set credentials.username or %s)", ErrConfig, EnvUsername)
	case out.Password == "":
		return Credentials{}, fmt.Errorf("%w: password is empty (set credentials.password or %s)", ErrConfig, EnvPassword)
	}
	return out, nil
}

// StaticCredentials always returns the same account.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials() (Credentials, error) {
	return Credentials(s), nil
}
