package main

import (
	"github.com/sells-group/asp-search/internal/config"
	"github.com/sells-group/asp-search/internal/store"
)

// storeConfig builds the store configuration from c, with path overriding
// the configured SQLite file when set.
func storeConfig(c *config.Config, path string) store.Config {
	sc := store.Config{
		Driver:      c.Store.Driver,
		Path:        c.Store.Path,
		DatabaseURL: c.Store.DatabaseURL,
		Tables: store.Tables{
			Data:     c.Store.Table,
			Metadata: c.Store.MetadataTable,
		},
	}
	if path != "" {
		sc.Path = path
	}
	return sc
}
