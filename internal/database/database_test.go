package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect("oracle", "dsn", Pool{})
	require.Error(t, err)
}

func TestConnectSQLiteInMemoryAndMigrate(t *testing.T) {
	db, err := Connect("sqlite", "file::memory:", Pool{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, Ping(db)(context.Background()))

	require.True(t, db.Migrator().HasTable("deadline_checkpoints"))
	require.True(t, db.Migrator().HasTable("notification_deliveries"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
	require.Error(t, Ping(db)(context.Background()))
}

func TestConnectRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)

	client, err := ConnectRedis("redis://"+server.Addr(), "gema-notifier-test")
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, PingRedis(client)(context.Background()))

	server.Close()
	require.Error(t, PingRedis(client)(context.Background()))

	_, err = ConnectRedis("", "x")
	require.Error(t, err)
}

func TestConnectEmptyURLs(t *testing.T) {
	_, err := ConnectPostgres("", Pool{})
	require.Error(t, err)

	_, err = ConnectSQLite("")
	require.Error(t, err)

	_, err = ConnectNATS("", "test")
	require.Error(t, err)
}
