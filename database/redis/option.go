// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package redis

import (
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig carries the connection settings for single node or cluster
// mode. ClusterAddr takes precedence over Addr when set.
type RedisConfig struct {
	Addr        string
	ClusterAddr []string

	Username string
	Password string

	PoolSize     int
	MinIdleConns int
	PoolFIFO     bool
	PoolTimeout  time.Duration

	MaxRedirects   int
	ReadOnly       bool
	RouteByLatency bool
	RouteRandomly  bool

	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxConnAge         time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

// An Option configures a *Database
type Option interface {
	Apply(*Database)
}

// OptionFunc is a function that configures a *Database
type OptionFunc func(*Database)

// Apply is a function that set value to *Database
func (f OptionFunc) Apply(engine *Database) {
	f(engine)
}

func WithHooks(hooks ...redis.Hook) Option {
	return OptionFunc(func(db *Database) {
		if db.db == nil {
			return
		}
		for _, hook := range hooks {
			db.db.AddHook(hook)
		}
	})
}

func WithSharedPipeliner(pipe redis.Pipeliner) Option {
	return OptionFunc(func(db *Database) {
		db.sharedPipe = pipe
	})
}

func NewWithSharedPipeliner() Option {
	return OptionFunc(func(db *Database) {
		if db.db != nil {
			db.sharedPipe = db.db.TxPipeline()
		}
	})
}
