package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emlakofis/emlak-backend/pkg/db/dbtest"
	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
)

func TestRepositoryListAndMarkRead(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	recipient := uuid.New()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n := &models.Notification{
			ID:          uuid.New(),
			RecipientID: recipient,
			Type:        enums.NotificationTypeNewMatch,
			Title:       "Yeni eşleşme",
			Body:        "gövde",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, n))
		ids = append(ids, n.ID)
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{
		ID: uuid.New(), RecipientID: uuid.New(), Type: enums.NotificationTypeNewMatch, Title: "x", Body: "y", CreatedAt: base,
	}))

	page, cursor, err := repo.List(ctx, listNotificationsParams{RecipientID: recipient, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	require.NotNil(t, cursor)

	rest, cursor, err := repo.List(ctx, listNotificationsParams{RecipientID: recipient, Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
	assert.Nil(t, cursor)

	mark, err := repo.MarkRead(ctx, recipient, ids[0], base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, mark.Updated)

	mark, err = repo.MarkRead(ctx, recipient, ids[0], base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, mark.Updated)
	assert.True(t, mark.Found)

	mark, err = repo.MarkRead(ctx, uuid.New(), ids[1], base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, mark.Found, "other recipients cannot mark")

	unread, _, err := repo.List(ctx, listNotificationsParams{RecipientID: recipient, Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	count, err := repo.CountUnread(ctx, recipient)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	mark, err = repo.MarkRead(ctx, recipient, uuid.New(), base)
	require.NoError(t, err)
	assert.False(t, mark.Found)

	updated, err := repo.MarkAllRead(ctx, recipient, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)
}

func TestRepositoryDeleteReadBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	recipient := uuid.New()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	readAt := old.Add(time.Hour)

	oldRead := &models.Notification{ID: uuid.New(), RecipientID: recipient, Type: enums.NotificationTypeNewMatch, Title: "a", Body: "a", CreatedAt: old, ReadAt: &readAt}
	oldUnread := &models.Notification{ID: uuid.New(), RecipientID: recipient, Type: enums.NotificationTypeNewMatch, Title: "b", Body: "b", CreatedAt: old}
	fresh := &models.Notification{ID: uuid.New(), RecipientID: recipient, Type: enums.NotificationTypeNewMatch, Title: "c", Body: "c", CreatedAt: old.AddDate(0, 3, 0), ReadAt: &readAt}
	for _, n := range []*models.Notification{oldRead, oldUnread, fresh} {
		require.NoError(t, repo.Create(ctx, n))
	}

	deleted, err := repo.DeleteReadBefore(ctx, nil, old.AddDate(0, 1, 0), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining []models.Notification
	require.NoError(t, conn.Order("title").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, "b", remaining[0].Title)
	assert.Equal(t, "c", remaining[1].Title)
}

func TestRepositoryDeleteReadBeforeHonoursLimit(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	recipient := uuid.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		created := base.Add(time.Duration(i) * time.Hour)
		readAt := created.Add(time.Minute)
		require.NoError(t, repo.Create(ctx, &models.Notification{
			ID: uuid.New(), RecipientID: recipient, Type: enums.NotificationTypeNewMatch,
			Title: fmt.Sprintf("n%d", i), Body: "x", CreatedAt: created, ReadAt: &readAt,
		}))
	}

	deleted, err := repo.DeleteReadBefore(ctx, nil, base.AddDate(0, 1, 0), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.Notification
	require.NoError(t, conn.Order("created_at").Find(&remaining).Error)
	require.Len(t, remaining, 3)
	assert.Equal(t, "n2", remaining[0].Title, "oldest rows go first")
}

func TestRepositoryFindPreference(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	recipient := uuid.New()

	pref, err := repo.FindPreference(ctx, recipient, enums.NotificationChannelEmail)
	require.NoError(t, err)
	assert.Nil(t, pref)

	require.NoError(t, conn.Exec(
		"INSERT INTO notification_preferences (recipient_id, channel, enabled, updated_at) VALUES (?, ?, ?, ?)",
		recipient, enums.NotificationChannelEmail, false, time.Now().UTC(),
	).Error)

	pref, err = repo.FindPreference(ctx, recipient, enums.NotificationChannelEmail)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.False(t, pref.Enabled)
}
