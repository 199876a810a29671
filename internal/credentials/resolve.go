package credentials

import (
	"os"

	"cmdwh/pkg/errors"
)

// PasswordEnv overrides any stored password.
const PasswordEnv = "CMDWH_SNOWFLAKE_PASSWORD"

// Source tells where a password came from.
type Source string

const (
	SourceConfig Source = "config"
	SourceEnv    Source = "env"
	SourceStore  Source = "store"
)

// Resolver finds the Snowflake password: the configured value, then the
// environment, then the store.
type Resolver struct {
	Store  Store
	Getenv func(string) string
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store, Getenv: os.Getenv}
}

// Password resolves the password of user. configured is the value from the
// config file, usually empty.
func (r *Resolver) Password(user, configured string) (string, Source, error) {
	if configured != "" {
		return configured, SourceConfig, nil
	}
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(PasswordEnv); v != "" {
		return v, SourceEnv, nil
	}
	if r.Store == nil || user == "" {
		return "", "", missing(user)
	}

	secret, err := r.Store.Get(user)
	if errors.Is(err, ErrNotFound) {
		return "", "", missing(user)
	}
	if err != nil {
		return "", "", err
	}
	return secret, SourceStore, nil
}

func missing(user string) error {
	return errors.New(errors.ErrCodeCredentialsUnavailable, "No Snowflake password available").
		WithContext("user", user).
		WithSeverity(errors.SeverityCritical).
		WithSuggestions(
			"Run 'cmdwh auth login' to store the password",
			"Or export "+PasswordEnv,
		)
}
