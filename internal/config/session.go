package config

import (
	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/filter"
	"github.com/mvp-joe/cbind/internal/frontend"
	"github.com/mvp-joe/cbind/internal/session"
)

// SessionOptions converts the configuration to session options. g may be nil.
func (c *Config) SessionOptions(g *GlobalConfig, builtins *extract.BuiltinResolver) (session.Options, error) {
	f, err := filter.New(c.Filter.Include, c.Filter.Exclude)
	if err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		Frontend: frontend.Options{
			IncludePaths: c.Frontend.IncludePaths,
			Defines:      c.Frontend.Defines,
		},
		Builtins: builtins,
		Filter:   f,
		Verbose:  c.Log.Verbose,
	}
	if g != nil {
		opts.Workers = g.Session.Workers
		opts.CacheSize = g.Session.CacheSize
	}
	return opts, nil
}
