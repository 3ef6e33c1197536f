package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/db"
	svcErr "github.com/oggyb/companion/internal/errors"
	"github.com/oggyb/companion/internal/repository"
)

func TestGetOrCreate_RequiresMatchAndIsLazy(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewConversationRepository(database)

	_, _, err := repo.GetOrCreate(ctx, "u1", "c-high")
	assert.ErrorIs(t, err, svcErr.ErrNoActiveMatch)

	matchWith(t, database, "u1", "c-high")

	first, created, err := repo.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, db.ConversationActive, first.Status)

	second, created, err := repo.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var stats db.UserStats
	require.NoError(t, database.Where("user_id = ?", "u1").Take(&stats).Error)
	assert.Equal(t, int64(1), stats.Conversations)
}

func TestAppendMessage_OrderAndPagination(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewConversationRepository(database)

	matchWith(t, database, "u1", "c-high")
	conv, _, err := repo.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)

	user := "u1"
	var appended []db.Message
	for i, text := range []string{"one", "two", "three", "four", "five"} {
		var sender *string
		if i%2 == 0 {
			sender = &user
		}
		m, err := repo.AppendMessage(ctx, conv, sender, text, db.MessageText)
		require.NoError(t, err)
		appended = append(appended, m)
	}

	// created_at strictly increases even when appends land in the same millisecond
	for i := 1; i < len(appended); i++ {
		assert.True(t, appended[i].CreatedAt.After(appended[i-1].CreatedAt))
	}

	var got []string
	var token *string
	pages := 0
	for {
		msgs, next, err := repo.ListMessages(ctx, conv.ID, token, 2)
		require.NoError(t, err)
		for _, m := range msgs {
			got = append(got, m.Content)
		}
		pages++
		if next == nil {
			break
		}
		token = next
	}
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, got)
	assert.Equal(t, 3, pages)

	// fetch → append → refetch yields the appended message last
	_, err = repo.AppendMessage(ctx, conv, &user, "six", db.MessageText)
	require.NoError(t, err)
	msgs, next, err := repo.ListMessages(ctx, conv.ID, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, msgs, 6)
	assert.Equal(t, "six", msgs[5].Content)

	var stats db.UserStats
	require.NoError(t, database.Where("user_id = ?", "u1").Take(&stats).Error)
	assert.Equal(t, int64(4), stats.MessagesSent)
}

func TestAppendMessage_ReadFlags(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewConversationRepository(database)

	matchWith(t, database, "u1", "c-high")
	conv, _, err := repo.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)

	user := "u1"
	mine, err := repo.AppendMessage(ctx, conv, &user, "hey", db.MessageText)
	require.NoError(t, err)
	theirs, err := repo.AppendMessage(ctx, conv, nil, "hey yourself", db.MessageText)
	require.NoError(t, err)

	assert.True(t, mine.IsRead)
	assert.False(t, mine.FromCompanion())
	assert.False(t, theirs.IsRead)
	assert.True(t, theirs.FromCompanion())

	unread, err := repo.CountUnreadForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	stored, err := repo.GetForUser(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMessageAt)
	assert.True(t, stored.LastMessageAt.Equal(theirs.CreatedAt))
}

func TestListMessages_BadToken(t *testing.T) {
	repo := repository.NewConversationRepository(setupTestDB(t))
	bad := "%%%"
	_, _, err := repo.ListMessages(context.Background(), "conv", &bad, 10)
	assert.ErrorIs(t, err, svcErr.ErrInvalidPageToken)
}

func TestGetForUser_Ownership(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewConversationRepository(database)

	matchWith(t, database, "u1", "c-high")
	conv, _, err := repo.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)

	_, err = repo.GetForUser(ctx, "u2", conv.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.True(t, repository.IsNotFound(err))
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewConversationRepository(database)

	matchWith(t, database, "u1", "c-high")
	matchWith(t, database, "u1", "c-mid")
	quiet, _, err := repo.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)
	busy, _, err := repo.GetOrCreate(ctx, "u1", "c-mid")
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, busy, nil, "ping", db.MessageText)
	require.NoError(t, err)

	rows, err := repo.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, busy.ID, rows[0].ID)
	assert.Equal(t, "Milo", rows[0].CompanionName)
	assert.Equal(t, quiet.ID, rows[1].ID)
	assert.Nil(t, rows[1].LastMessageAt)
}
