package storage

import (
	"testing"
	"time"

	"github.com/auditmos/dianoia/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryDB(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"settings", "log_exports", "redaction_rules"} {
		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		require.NoError(t, err, table)
		assert.Equal(t, 0, count, table)
	}
}

func TestOpenDB_File(t *testing.T) {
	path := t.TempDir() + "/dianoia.db"

	db, err := OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteSettingsRepo(db).Set("k", "v"))
	require.NoError(t, db.Close())

	db, err = OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	value, ok, err := NewSQLiteSettingsRepo(db).Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestSettingsRepo_SetAndGet(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteSettingsRepo(db)

	_, ok, err := repo.Get(logging.StoreKeyDebug)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(logging.StoreKeyDebug, "true"))
	require.NoError(t, repo.Set(logging.StoreKeyDebug, "false"))

	value, ok, err := repo.Get(logging.StoreKeyDebug)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", value)
}

func TestSettingsRepo_EmptyKey(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	err = NewSQLiteSettingsRepo(db).Set("", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestSettingsRepo_DeleteAndAll(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteSettingsRepo(db)
	require.NoError(t, repo.Set("b", "2"))
	require.NoError(t, repo.Set("a", "1"))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Key)
	assert.Equal(t, "b", all[1].Key)
	assert.NotZero(t, all[0].UpdatedAt)

	require.NoError(t, repo.Delete("a"))
	require.NoError(t, repo.Delete("missing"))

	all, err = repo.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSettingsRepo_AsLoggerSource(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteSettingsRepo(db)
	require.NoError(t, repo.Set(logging.StoreKeyDebugLevel, "error"))

	logger := logging.New(logging.LoggerConfig{
		Config:  logging.ConfigPatch{LogToConsole: logging.Ptr(false)},
		Sources: []logging.SettingSource{logging.StoreSource{Store: repo}},
	})

	assert.Equal(t, logging.ERROR, logger.GetConfig().Level)
}

func TestExportRepo_SaveAndGet(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteExportRepo(db)

	exp := &LogExport{EntryCount: 2, Payload: []byte(`[{"level":"info"},{"level":"warn"}]`)}
	require.NoError(t, repo.Save(exp))
	assert.NotEmpty(t, exp.ID)
	assert.NotZero(t, exp.CreatedAt)

	got, err := repo.Get(exp.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, exp.ID, got.ID)
	assert.Equal(t, exp.CreatedAt, got.CreatedAt)
	assert.Equal(t, 2, got.EntryCount)
	assert.Equal(t, exp.Payload, got.Payload)
}

func TestExportRepo_GetNotFound(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	got, err := NewSQLiteExportRepo(db).Get("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExportRepo_ListNewestFirst(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteExportRepo(db)
	base := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(&LogExport{CreatedAt: base + int64(i), EntryCount: i}))
	}

	list, err := repo.List(3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 4, list[0].EntryCount)
	assert.Equal(t, 2, list[2].EntryCount)
	assert.Nil(t, list[0].Payload)
}

func TestExportRepo_DeleteAndPrune(t *testing.T) {
	db, err := OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteExportRepo(db)
	now := time.Now()

	old := &LogExport{CreatedAt: now.Add(-48 * time.Hour).UnixMilli()}
	recent := &LogExport{CreatedAt: now.UnixMilli()}
	doomed := &LogExport{CreatedAt: now.UnixMilli()}
	require.NoError(t, repo.Save(old))
	require.NoError(t, repo.Save(recent))
	require.NoError(t, repo.Save(doomed))

	require.NoError(t, repo.Delete(doomed.ID))

	n, err := repo.Prune(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recent.ID, list[0].ID)
}
