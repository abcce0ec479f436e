package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/message"
	pkgerrors "sift/pkg/errors"
)

func TestMessageRepositoryAssignmentLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := message.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	msg := createTestMessage(t, "alerts@campaign.example", []message.CtaLink{
		{URL: "https://track.example/abc"},
	})
	require.NoError(t, repo.Create(ctx, msg))

	unattributed, err := repo.ListUnattributed(ctx, 100)
	require.NoError(t, err)
	require.Len(t, unattributed, 1)
	assert.Equal(t, msg.ID, unattributed[0].ID)

	assignedAt := time.Now()
	require.NoError(t, repo.UpdateAssignment(ctx, msg.ID, "entity-1", message.MethodAutoWinRed, assignedAt))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EntityID)
	assert.Equal(t, "entity-1", *got.EntityID)
	assert.Equal(t, message.MethodAutoWinRed, got.AssignmentMethod)
	require.NotNil(t, got.AssignedAt)

	// Assigned messages drop out of the unattributed batch.
	unattributed, err = repo.ListUnattributed(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, unattributed)
}

func TestMessageRepositoryReviewedIsProtected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := message.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	msg := createTestMessage(t, "alerts@campaign.example", []message.CtaLink{
		{URL: "https://secure.winred.com/nrcc"},
	})
	msg.AssignmentMethod = message.MethodReviewed
	require.NoError(t, repo.Create(ctx, msg))

	// Reviewed messages never appear in the automation batch.
	unattributed, err := repo.ListUnattributed(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, unattributed)

	// And a direct assignment attempt is refused.
	err = repo.UpdateAssignment(ctx, msg.ID, "entity-1", message.MethodAutoWinRed, time.Now())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EntityID)
	assert.Equal(t, message.MethodReviewed, got.AssignmentMethod)
}

func TestMessageRepositoryUpdateLinks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := message.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	msg := createTestMessage(t, "alerts@campaign.example", []message.CtaLink{
		{URL: "https://track.example/abc"},
	})
	require.NoError(t, repo.Create(ctx, msg))

	require.NoError(t, repo.UpdateLinks(ctx, msg.ID, []message.CtaLink{
		{URL: "https://track.example/abc", FinalURL: "https://secure.winred.com/nrcc"},
	}))

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)

	links, err := got.Links()
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://secure.winred.com/nrcc", links[0].FinalURL)
	assert.True(t, links[0].Resolved())
}

func TestMessageRepositoryBatchOrderAndLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	repo := message.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		msg := createTestMessage(t, "alerts@campaign.example", []message.CtaLink{
			{URL: "https://track.example/x"},
		})
		require.NoError(t, repo.Create(ctx, msg))
		ids = append(ids, msg.ID)
		time.Sleep(5 * time.Millisecond)
	}

	batch, err := repo.ListUnattributed(ctx, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	// Oldest first.
	assert.Equal(t, ids[0], batch[0].ID)
	assert.Equal(t, ids[1], batch[1].ID)
	assert.Equal(t, ids[2], batch[2].ID)
}
