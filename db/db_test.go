package db

import (
	"context"
	"os"
	"road-editor/config"
	"road-editor/model"
	"road-editor/utils"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"seehuhn.de/go/geom/vec"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Config{DBHost: "db", DBPort: "5433", DBUser: "u", DBPassword: "p", DBName: "roads"})
	assert.Equal(t, "host=db user=u password=p dbname=roads port=5433 sslmode=disable TimeZone=UTC", dsn)
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUsers()

	_, err := store.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	u := &model.User{Username: "alice", Password: "hash"}
	require.NoError(t, store.Create(ctx, u))
	assert.NotZero(t, u.ID)
	assert.ErrorIs(t, store.Create(ctx, &model.User{Username: "alice"}), ErrAlreadyExists)

	got, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.Password)
	got.Password = "changed"
	again, _ := store.FindByUsername(ctx, "alice")
	assert.Equal(t, "hash", again.Password)
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryUsers()
	require.NoError(t, SeedAdmin(ctx, store, "admin123"))
	require.NoError(t, SeedAdmin(ctx, store, "other"))

	admin, err := store.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword(admin.Password, "admin123"))
}

func TestMemoryDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocuments()
	now := time.Now()
	require.NoError(t, store.Save(ctx, &model.RoadDocument{ID: "old", Name: "a", Content: "<x/>", CreatedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, &model.RoadDocument{ID: "new", Name: "b", Content: "<y/>", CreatedAt: now}))

	doc, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "<x/>", doc.Content)
	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Empty(t, list[0].Content)
}

// 需要真实的 PostgreSQL, 通过 TEST_DATABASE_DSN 指定
func openTestDB(t *testing.T) *Repos {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	conn, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))
	return NewRepos(conn)
}

func TestPostgresAxisRepo(t *testing.T) {
	repos := openTestDB(t)
	ctx := context.Background()
	session := "test-" + uuid.NewString()

	axes := []model.EditableAxis{
		{ID: uuid.NewString(), Vertices: []vec.Vec2{{X: 0.1, Y: 0.2}, {X: 10, Y: 1.0 / 3}, {X: 20, Y: 5}}, Rounding: map[int]float64{1: 0.35}},
		{ID: uuid.NewString(), Vertices: []vec.Vec2{{X: -5, Y: -5}, {X: 5, Y: 5}}},
	}
	require.NoError(t, repos.Axes.SaveAxes(ctx, session, axes))
	got, err := repos.Axes.LoadAxes(ctx, session)
	require.NoError(t, err)
	if diff := cmp.Diff(axes, got); diff != "" {
		t.Errorf("axes differ (-want +got):\n%s", diff)
	}

	require.NoError(t, repos.Axes.SaveAxes(ctx, session, axes[1:]))
	got, err = repos.Axes.LoadAxes(ctx, session)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.NoError(t, repos.Axes.SaveAxes(ctx, session, nil))
}

func TestPostgresUsersAndDocuments(t *testing.T) {
	repos := openTestDB(t)
	ctx := context.Background()

	name := "user-" + uuid.NewString()
	require.NoError(t, repos.Users.Create(ctx, &model.User{Username: name, Password: "x"}))
	assert.ErrorIs(t, repos.Users.Create(ctx, &model.User{Username: name, Password: "y"}), ErrAlreadyExists)
	_, err := repos.Users.FindByUsername(ctx, "nobody-"+uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	id := uuid.NewString()
	require.NoError(t, repos.Documents.Save(ctx, &model.RoadDocument{ID: id, Name: "doc", Content: "<OpenDRIVE/>"}))
	doc, err := repos.Documents.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "<OpenDRIVE/>", doc.Content)
}
