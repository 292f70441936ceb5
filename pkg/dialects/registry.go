// pkg/dialects/registry.go
package dialects

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
)

// DataSourceFactory creates a new, unconnected DataSource for one dialect.
type DataSourceFactory func() common.DataSource

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DataSourceFactory)
)

// Register makes a DataSource driver available under the given name.
// Registering the same name twice, or a nil factory, panics.
func Register(name string, factory DataSourceFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if factory == nil {
		panic("dialects: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("dialects: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// Get retrieves the factory registered for a dialect, or nil.
func Get(name string) DataSourceFactory {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return drivers[name]
}

// RegisteredDrivers returns the names of every registered driver, sorted.
func RegisteredDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]string, 0, len(drivers))
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// Open creates the DataSource registered for cfg.Dialect and connects it.
func Open(cfg config.DatabaseConfig) (common.DataSource, error) {
	factory := Get(cfg.Dialect)
	if factory == nil {
		return nil, fmt.Errorf("dialect %q is not registered (forgotten driver import?), registered: %v", cfg.Dialect, RegisteredDrivers())
	}
	ds := factory()
	if err := ds.Connect(cfg); err != nil {
		return nil, err
	}
	return ds, nil
}
