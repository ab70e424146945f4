package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type tracedRow struct {
	ID   uint
	Name string
}

func openTracedDB(t *testing.T, cfg DBTracingConfig, logger *zap.Logger) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, RegisterDBTracing(db, cfg, logger))
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := openTracedDB(t, DBTracingConfig{Enabled: false}, zap.NewNop())
	assert.Nil(t, db.Callback().Query().Get("ledger:slow_after_query"))
}

func TestRegisterDBTracing_FlagsSlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	db := openTracedDB(t, DBTracingConfig{
		Enabled:            true,
		DBName:             "sqlite",
		SlowQueryThreshold: time.Nanosecond,
	}, zap.New(core))

	require.NoError(t, db.Create(&tracedRow{Name: "lot"}).Error)
	var got []tracedRow
	require.NoError(t, db.Find(&got).Error)

	assert.NotNil(t, db.Callback().Query().Get("ledger:slow_after_query"))
	assert.NotZero(t, logs.FilterMessage("slow query").Len())
}
