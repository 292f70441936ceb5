// pkg/dialects/registry_test.go
package dialects

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// --- Mocks/Stubs for testing ---
type mockDataSource struct {
	dialect    common.Dialect
	connectErr error
	connected  bool
}

func (m *mockDataSource) Connect(cfg config.DatabaseConfig) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}
func (m *mockDataSource) Ping(ctx context.Context) error { return nil }
func (m *mockDataSource) Close() error                   { return nil }
func (m *mockDataSource) DB() *sql.DB                    { return nil }
func (m *mockDataSource) Dialect() common.Dialect        { return m.dialect }

type mockDialect struct {
	sqlast.ANSI
	name string
}

func (m *mockDialect) Name() string                   { return m.name }
func (m *mockDialect) DriverName() string             { return "mock" }
func (m *mockDialect) NormalizeDSN(dsn string) string { return dsn }

var _ common.Dialect = (*mockDialect)(nil)

func newMockDataSourceFactory(dialectName string) DataSourceFactory {
	return func() common.DataSource {
		return &mockDataSource{dialect: &mockDialect{name: dialectName}}
	}
}

func cleanupRegistry(t *testing.T) {
	t.Helper()
	driversMu.Lock()
	saved := drivers
	drivers = make(map[string]DataSourceFactory)
	driversMu.Unlock()
	t.Cleanup(func() {
		driversMu.Lock()
		drivers = saved
		driversMu.Unlock()
	})
}

// --- Test Functions ---

func TestRegisterAndGet(t *testing.T) {
	cleanupRegistry(t)

	Register("mock1", newMockDataSourceFactory("mock1"))
	retrievedFactory := Get("mock1")
	require.NotNil(t, retrievedFactory, "Factory 'mock1' should be found")

	ds := retrievedFactory()
	require.NotNil(t, ds)
	require.NotNil(t, ds.Dialect())
	assert.Equal(t, "mock1", ds.Dialect().Name())
}

func TestGet_NotFound(t *testing.T) {
	cleanupRegistry(t)
	assert.Nil(t, Get("nonexistent"), "Getting a non-registered driver should return nil factory")
}

func TestRegister_DuplicatePanic(t *testing.T) {
	cleanupRegistry(t)
	Register("mock-dup", newMockDataSourceFactory("mock-dup"))
	assert.PanicsWithValue(t, "dialects: Register called twice for driver mock-dup", func() {
		Register("mock-dup", newMockDataSourceFactory("other"))
	})
}

func TestRegister_NilFactoryPanic(t *testing.T) {
	cleanupRegistry(t)
	assert.PanicsWithValue(t, "dialects: Register factory is nil", func() {
		Register("mock-nil", nil)
	})
}

func TestRegisteredDrivers(t *testing.T) {
	cleanupRegistry(t)
	assert.Empty(t, RegisteredDrivers())
	Register("mockB", newMockDataSourceFactory("mockB"))
	Register("mockA", newMockDataSourceFactory("mockA"))
	assert.Equal(t, []string{"mockA", "mockB"}, RegisteredDrivers())
}

func TestOpen(t *testing.T) {
	cleanupRegistry(t)
	Register("mock", newMockDataSourceFactory("mock"))

	ds, err := Open(config.DatabaseConfig{Dialect: "mock", DSN: "x"})
	require.NoError(t, err)
	assert.True(t, ds.(*mockDataSource).connected)

	_, err = Open(config.DatabaseConfig{Dialect: "missing", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `dialect "missing" is not registered`)

	boom := errors.New("boom")
	Register("failing", func() common.DataSource {
		return &mockDataSource{dialect: &mockDialect{name: "failing"}, connectErr: boom}
	})
	_, err = Open(config.DatabaseConfig{Dialect: "failing", DSN: "x"})
	assert.ErrorIs(t, err, boom)
}
