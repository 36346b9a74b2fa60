package statcache

import "time"

// Config configures a Cache.
type Config struct {
	// FillTimeout bounds how long a placeholder fragment may sit
	// unpopulated before the Cache gives up on it and synthesizes an
	// empty completion (Generation = backend.GenerationMax), unblocking
	// every query awaiting it. Zero (the default) disables the timeout,
	// reproducing the source cache's behavior exactly: a DataSource that
	// never calls back leaks the placeholder and every query awaiting
	// it forever.
	FillTimeout time.Duration `yaml:"fill_timeout"`
}
