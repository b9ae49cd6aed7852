package admin

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/inkpot/internal/content"
	"github.com/mschirtzinger/inkpot/internal/db"
	"github.com/mschirtzinger/inkpot/internal/migrate"
	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

type fixture struct {
	root    string
	db      *db.DB
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	discard := log.New(io.Discard, "", 0)

	database, err := db.Open(filepath.Join(t.TempDir(), "admin.db"), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	reader := content.NewDirReader(root)
	engine := inksync.New(database, reader, &inksync.Config{
		Workers:  2,
		Taxonomy: reader,
		Logger:   discard,
	})

	cfg := migrate.DefaultConfig()
	cfg.Logger = discard
	runner := migrate.New(database, cfg)
	runner.SetImporter(engine)

	return &fixture{
		root:    root,
		db:      database,
		service: New(engine, runner, database, discard),
	}
}

func (f *fixture) write(t *testing.T, slug, frontMatter string) {
	t.Helper()
	path := filepath.Join(f.root, content.ArticlesDir, slug, "index.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("---\n"+frontMatter+"---\nbody\n"), 0644))
}

func TestStatus_EmptyDatastore(t *testing.T) {
	f := newFixture(t)

	resp := f.service.Status(context.Background())
	assert.True(t, resp.Success)
	assert.True(t, resp.Empty)
	assert.Nil(t, resp.Version)
	assert.Nil(t, resp.Counts)
	assert.Equal(t, db.Schema.Fingerprint(), resp.ExpectedHash)
}

func TestMigrate_ThenStatus(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a", "title: A\ndescription: d\npublishedTime: 2024-01-01\n")
	ctx := context.Background()

	res := f.service.Migrate(ctx, MigrateRequest{})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(1), res.Version)
	assert.Contains(t, res.Message, "initial data imported")

	resp := f.service.Status(ctx)
	require.True(t, resp.Success)
	assert.False(t, resp.Empty)
	require.NotNil(t, resp.Version)
	assert.Equal(t, int64(1), resp.Version.Version)
	assert.True(t, resp.UpToDate)
	require.NotNil(t, resp.Counts)
	assert.Equal(t, 1, resp.Counts.Articles)
}

func TestMigrate_SkipImport(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a", "title: A\ndescription: d\npublishedTime: 2024-01-01\n")
	ctx := context.Background()

	res := f.service.Migrate(ctx, MigrateRequest{SkipImport: true})
	require.True(t, res.Success, res.Message)

	n, err := f.db.CountArticles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrate_Force(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.service.Migrate(ctx, MigrateRequest{SkipImport: true}).Success)
	res := f.service.Migrate(ctx, MigrateRequest{})
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "up to date")

	res = f.service.Migrate(ctx, MigrateRequest{Force: true, SkipImport: true})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(2), res.Version)
}

func TestSync_Full(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.service.Migrate(ctx, MigrateRequest{SkipImport: true}).Success)

	f.write(t, "a", "title: A\ndescription: d\npublishedTime: 2024-01-01\n")
	f.write(t, "b", "title: B\ndescription: d\npublishedTime: 2024-01-02\ncategory: nope\n")
	f.write(t, "c", "description: no title\npublishedTime: 2024-01-02\n")

	resp := f.service.Sync(ctx, "")
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Created)
	assert.Len(t, resp.Errors, 2)

	resp = f.service.Sync(ctx, "")
	assert.Equal(t, 0, resp.Created)
	assert.Equal(t, 2, resp.Unchanged)
}

func TestSync_Targeted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.service.Migrate(ctx, MigrateRequest{SkipImport: true}).Success)
	f.write(t, "a", "title: A\ndescription: d\npublishedTime: 2024-01-01\n")

	resp := f.service.Sync(ctx, "a")
	assert.True(t, resp.Success)
	assert.Equal(t, "a", resp.Slug)

	resp = f.service.Sync(ctx, "missing")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "missing")
}

type brokenSyncer struct{}

func (brokenSyncer) SyncAll(context.Context) (*inksync.Result, error) {
	return nil, errors.New("database is closed")
}
func (brokenSyncer) SyncOne(context.Context, string) bool { return false }

func TestSync_DatastoreUnavailable(t *testing.T) {
	svc := New(brokenSyncer{}, nil, nil, log.New(io.Discard, "", 0))

	resp := svc.Sync(context.Background(), "")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "database is closed")
	assert.NotNil(t, resp.Errors)
}

func TestStatus_Unavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Close())

	resp := f.service.Status(context.Background())
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "unavailable")
}
