package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ParamReader resolves named configuration parameters from two layers: a
// local override file and the process environment.  It never mutates the
// environment.  The zero value resolves nothing.
type ParamReader struct {
	overrides map[string]string
	lookupEnv func(string) (string, bool)
}

// NewParamReader builds a reader over an override map and an environment
// lookup function (os.LookupEnv in production).  Override keys are matched
// after upper-casing, like parameter names.
func NewParamReader(overrides map[string]string, lookupEnv func(string) (string, bool)) ParamReader {
	norm := make(map[string]string, len(overrides))
	for k, v := range overrides {
		norm[strings.ToUpper(k)] = v
	}
	return ParamReader{overrides: norm, lookupEnv: lookupEnv}
}

// LoadParamReader reads the override file at path with godotenv and pairs
// it with the process environment.  A missing file is not an error.
func LoadParamReader(path string) (ParamReader, error) {
	overrides := map[string]string{}
	if path != "" {
		m, err := godotenv.Read(path)
		switch {
		case err == nil:
			overrides = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return ParamReader{}, fmt.Errorf("read override file %s: %w", path, err)
		}
	}
	return NewParamReader(overrides, os.LookupEnv), nil
}

// Lookup returns the value of a parameter, or nil when neither layer has
// a non-empty value.  Names are case-insensitive.  The override file takes
// precedence over the environment.
func (r ParamReader) Lookup(name string) *string {
	key := strings.ToUpper(name)
	if v := r.overrides[key]; v != "" {
		return &v
	}
	if r.lookupEnv != nil {
		if v, ok := r.lookupEnv(key); ok && v != "" {
			return &v
		}
	}
	return nil
}
