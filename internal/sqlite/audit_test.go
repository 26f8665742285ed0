package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onlygantt/ganttd/internal/domain/audit"
	"github.com/onlygantt/ganttd/internal/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())
	return db
}

func TestAuditRepository_LogAssignsID(t *testing.T) {
	repo := sqlite.NewAuditRepository(newTestDB(t))
	ctx := context.Background()

	entry := &audit.Entry{
		EventType:  audit.TypeLockAcquired,
		Department: "engineering",
		Actor:      "alice",
		ClientHost: "alice-host",
	}
	require.NoError(t, repo.Log(ctx, entry))
	require.NotZero(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
}

func TestAuditRepository_ListNewestFirst(t *testing.T) {
	repo := sqlite.NewAuditRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, eventType := range []audit.EventType{
		audit.TypeLockAcquired,
		audit.TypeDocumentSaved,
		audit.TypeLockReleased,
	} {
		require.NoError(t, repo.Log(ctx, &audit.Entry{
			EventType:  eventType,
			Department: "engineering",
			Actor:      "alice",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := repo.List(ctx, audit.ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, audit.TypeLockReleased, entries[0].EventType)
	require.Equal(t, audit.TypeLockAcquired, entries[2].EventType)
}

func TestAuditRepository_ListFilters(t *testing.T) {
	repo := sqlite.NewAuditRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Log(ctx, &audit.Entry{
		EventType: audit.TypeLockAcquired, Department: "engineering", Actor: "alice",
	}))
	require.NoError(t, repo.Log(ctx, &audit.Entry{
		EventType: audit.TypeLockAcquired, Department: "marketing", Actor: "bob",
	}))
	require.NoError(t, repo.Log(ctx, &audit.Entry{
		EventType: audit.TypeDocumentSaved, Department: "engineering", Actor: "alice",
	}))

	byDept, err := repo.List(ctx, audit.ListOptions{Department: "engineering"})
	require.NoError(t, err)
	require.Len(t, byDept, 2)

	saved := audit.TypeDocumentSaved
	byType, err := repo.List(ctx, audit.ListOptions{EventType: &saved})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, "engineering", byType[0].Department)

	both, err := repo.List(ctx, audit.ListOptions{Department: "marketing", EventType: &saved})
	require.NoError(t, err)
	require.Empty(t, both)
}

func TestAuditRepository_ListPagination(t *testing.T) {
	repo := sqlite.NewAuditRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Log(ctx, &audit.Entry{
			EventType: audit.TypeDocumentSaved,
			Actor:     "alice",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := repo.List(ctx, audit.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)

	next, err := repo.List(ctx, audit.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, next, 2)
	require.NotEqual(t, page[0].ID, next[0].ID)
}

func TestAuditService_RecordSwallowsRepoErrors(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewAuditRepository(db)
	svc := audit.NewService(repo, nil)

	// Closing the database makes every write fail; Record must not panic
	// and Recent must surface the error.
	require.NoError(t, db.Close())
	svc.Record(context.Background(), &audit.Entry{
		EventType: audit.TypeLockAcquired, Actor: "alice",
	})

	_, err := svc.Recent(context.Background(), audit.ListOptions{})
	require.Error(t, err)
}
