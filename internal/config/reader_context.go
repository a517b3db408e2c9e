package config

import (
	"net/http"
	"os"
)

// Env looks up environment variables.
type Env interface {
	Get(key string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) Get(key string) (string, bool) { return os.LookupEnv(key) }

// MapEnv is a fixed environment, mostly for tests.
type MapEnv map[string]string

func (m MapEnv) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ReaderContext resolves the vars and env namespaces while the
// configuration itself is being compiled, before any request exists.
type ReaderContext struct {
	Vars   map[string]string
	Env    Env
	Header http.Header
}

func (r ReaderContext) PathString(path []string) (string, bool) {
	if len(path) < 2 {
		return "", false
	}
	switch path[0] {
	case "vars":
		v, ok := r.Vars[path[1]]
		return v, ok
	case "env":
		if r.Env == nil {
			return "", false
		}
		return r.Env.Get(path[1])
	}
	return "", false
}

func (r ReaderContext) Headers() http.Header {
	return r.Header
}
