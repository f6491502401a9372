package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/psds-microservice/ticket-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrate_CreatesTicketsTable(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, sqlDB, "sqlite3", zap.NewNop()))
	require.NoError(t, Migrate(ctx, sqlDB, "sqlite3", zap.NewNop()), "second run is a no-op")

	require.NoError(t, db.Create(&model.Ticket{OrderID: "o-1", ChannelID: "C1", Kind: model.TicketKindQuote}).Error)
	err = db.Create(&model.Ticket{OrderID: "o-2", ChannelID: "C1", Kind: model.TicketKindStandard}).Error
	assert.Error(t, err, "channel ids are unique")

	var got model.Ticket
	require.NoError(t, db.First(&got, "order_id = ?", "o-1").Error)
	assert.Equal(t, "C1", got.ChannelID)
	assert.Equal(t, model.TicketKindQuote, got.Kind)
}
