package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// Credentials are the bot account used for edits.
type Credentials struct {
	User string
	Pass string
}

// LoadCredentials reads user= and pass= from a KEY=value file.
// A missing file or key is a ConfigurationError.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		return nil, &ConfigurationError{Field: "wiki.credentials_file", Reason: "must be set"}
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{Field: "wiki.credentials_file", Reason: "login creds file not found: " + path}
		}
		return nil, &ConfigurationError{Field: "wiki.credentials_file", Reason: err.Error()}
	}

	creds := &Credentials{User: vals["user"], Pass: vals["pass"]}
	if creds.User == "" || creds.Pass == "" {
		return nil, &ConfigurationError{Field: "wiki.credentials_file", Reason: "user and pass must both be set"}
	}
	return creds, nil
}
