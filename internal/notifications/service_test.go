package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emlakofis/emlak-backend/pkg/db/models"
	"github.com/emlakofis/emlak-backend/pkg/enums"
	pkgerrors "github.com/emlakofis/emlak-backend/pkg/errors"
	"github.com/emlakofis/emlak-backend/pkg/pagination"
)

// stubRepository answers from fixed values and records what the inbox asked.
type stubRepository struct {
	rows      []models.Notification
	next      *pagination.Cursor
	unread    int64
	mark      notificationMarkResult
	marked    int64
	err       error
	countErr  error
	lastList  listNotificationsParams
	lastMarkT time.Time
}

func (s *stubRepository) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepository) Create(context.Context, *models.Notification) error { return s.err }

func (s *stubRepository) List(_ context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	s.lastList = params
	return s.rows, s.next, s.err
}

func (s *stubRepository) CountUnread(context.Context, uuid.UUID) (int64, error) {
	return s.unread, s.countErr
}

func (s *stubRepository) MarkRead(_ context.Context, _, _ uuid.UUID, now time.Time) (notificationMarkResult, error) {
	s.lastMarkT = now
	return s.mark, s.err
}

func (s *stubRepository) MarkAllRead(context.Context, uuid.UUID, time.Time) (int64, error) {
	return s.marked, s.err
}

func (s *stubRepository) DeleteReadBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, s.err
}

func (s *stubRepository) FindPreference(context.Context, uuid.UUID, enums.NotificationChannel) (*models.NotificationPreference, error) {
	return nil, s.err
}

func newInbox(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestInboxList(t *testing.T) {
	next := pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	repo := &stubRepository{
		rows:   []models.Notification{{ID: uuid.New()}},
		next:   &next,
		unread: 7,
	}
	svc := newInbox(t, repo)

	resumeFrom := pagination.Cursor{CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), ID: uuid.New()}
	result, err := svc.List(context.Background(), ListParams{
		RecipientID: uuid.New(),
		Limit:       1,
		Cursor:      resumeFrom.Encode(),
		UnreadOnly:  true,
	})
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.EqualValues(t, 7, result.UnreadCount)
	assert.Equal(t, next.Encode(), result.Cursor)

	assert.Equal(t, 1, repo.lastList.Limit)
	assert.True(t, repo.lastList.UnreadOnly)
	require.NotNil(t, repo.lastList.Cursor)
	assert.Equal(t, resumeFrom.ID, repo.lastList.Cursor.ID)
}

func TestInboxListLastPage(t *testing.T) {
	result, err := newInbox(t, &stubRepository{}).List(context.Background(), ListParams{RecipientID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, result.Cursor)
	assert.NotNil(t, result.Items, "an empty inbox renders as []")
}

func TestInboxListErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newInbox(t, &stubRepository{}).List(ctx, ListParams{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = newInbox(t, &stubRepository{}).List(ctx, ListParams{RecipientID: uuid.New(), Cursor: "bad"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = newInbox(t, &stubRepository{err: errors.New("db down")}).List(ctx, ListParams{RecipientID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = newInbox(t, &stubRepository{countErr: errors.New("db down")}).List(ctx, ListParams{RecipientID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestInboxMarkRead(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepository{mark: notificationMarkResult{Found: true, Updated: true}}
	require.NoError(t, newInbox(t, repo).MarkRead(ctx, uuid.New(), uuid.New()))
	assert.Equal(t, time.UTC, repo.lastMarkT.Location())

	already := &stubRepository{mark: notificationMarkResult{Found: true}}
	assert.NoError(t, newInbox(t, already).MarkRead(ctx, uuid.New(), uuid.New()))

	err := newInbox(t, &stubRepository{}).MarkRead(ctx, uuid.New(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = newInbox(t, &stubRepository{}).MarkRead(ctx, uuid.New(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInboxMarkAllRead(t *testing.T) {
	ctx := context.Background()

	count, err := newInbox(t, &stubRepository{marked: 3}).MarkAllRead(ctx, uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	_, err = newInbox(t, &stubRepository{err: errors.New("boom")}).MarkAllRead(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = newInbox(t, &stubRepository{}).MarkAllRead(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
