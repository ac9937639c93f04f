package drinks

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "drinks.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to open sqlite")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&Drink{}), "failed to migrate schema")

	service, err := NewService(ServiceConfig{Database: db, Logger: zap.NewNop()})
	require.NoError(t, err)
	return service, db
}

func waterRecipe() Recipe {
	return Recipe{{Color: "blue", Name: "water", Parts: 1}}
}

func stringPtr(value string) *string {
	return &value
}

func requireKind(t *testing.T, err error, kind ErrorKind) *ServiceError {
	t.Helper()
	require.Error(t, err)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, kind, serviceErr.Kind(), "unexpected kind for %s", serviceErr.Code())
	return serviceErr
}
