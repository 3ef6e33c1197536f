package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/repository"
)

// matchWith records a mutual like so u1 is matched with companionID.
func matchWith(t *testing.T, database *gorm.DB, userID, companionID string) db.Match {
	t.Helper()
	res, err := repository.NewDecisionRepository(database).
		ProcessDecision(context.Background(), userID, companionID, db.DecisionLike, alwaysMutual)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	return *res.Match
}

func TestListWithDetails_AggregatesConversation(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	matches := repository.NewMatchRepository(database)
	convs := repository.NewConversationRepository(database)

	matchWith(t, database, "u1", "c-high")
	matchWith(t, database, "u1", "c-mid")

	conv, _, err := convs.GetOrCreate(ctx, "u1", "c-high")
	require.NoError(t, err)
	user := "u1"
	_, err = convs.AppendMessage(ctx, conv, &user, "hi there", db.MessageText)
	require.NoError(t, err)
	for _, text := range []string{"hello!", "how are you?", "still there?"} {
		_, err = convs.AppendMessage(ctx, conv, nil, text, db.MessageText)
		require.NoError(t, err)
	}

	rows, err := matches.ListWithDetails(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byCompanion := map[string]repository.MatchDetail{}
	for _, r := range rows {
		byCompanion[r.CompanionID] = r
	}

	high := byCompanion["c-high"]
	require.NotNil(t, high.ConversationID)
	assert.Equal(t, conv.ID, *high.ConversationID)
	require.NotNil(t, high.LastMessage)
	assert.Equal(t, "still there?", *high.LastMessage)
	require.NotNil(t, high.LastMessageAt)
	assert.Equal(t, int64(3), high.UnreadCount)
	assert.Equal(t, "Aria", high.Name)
	assert.Equal(t, db.StringList{"astronomy"}, high.Interests)
	require.NotNil(t, high.CompatibilityScore)
	assert.Equal(t, 90.0, *high.CompatibilityScore)

	mid := byCompanion["c-mid"]
	assert.Nil(t, mid.ConversationID)
	assert.Nil(t, mid.LastMessage)
	assert.Zero(t, mid.UnreadCount)

	// mark read → unread 0, and idempotent
	n, err := convs.MarkCompanionMessagesRead(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = convs.MarkCompanionMessagesRead(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err = matches.ListWithDetails(ctx, "u1")
	require.NoError(t, err)
	for _, r := range rows {
		assert.Zero(t, r.UnreadCount)
	}
}

func TestDeactivateMatch(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewMatchRepository(database)

	m := matchWith(t, database, "u1", "c-high")

	// someone else's match is not visible
	err := repo.Deactivate(ctx, "u2", m.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Deactivate(ctx, "u1", m.ID))
	require.NoError(t, repo.Deactivate(ctx, "u1", m.ID)) // idempotent

	rows, err := repo.ListWithDetails(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// soft delete: the row is still there
	var stored db.Match
	require.NoError(t, database.Where("id = ?", m.ID).Take(&stored).Error)
	assert.False(t, stored.IsActive)
}
