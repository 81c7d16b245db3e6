package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

func newLedgerFixture() (*LedgerService, *memDB) {
	db := newMemDB()
	return NewLedgerService(memLedger{db: db}, &fakeTx{}, nil, nil), db
}

func TestGrantExperienceWithoutLevelUp(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)

	change, err := svc.GrantExperience(context.Background(), "u1", PointsPostCreated, "post")
	require.NoError(t, err)
	assert.False(t, change.LevelUp)
	assert.Equal(t, 1, change.NewLevel)
	assert.Equal(t, "Bronze", change.NewTitle)
	assert.Equal(t, 50, db.user("u1").Experience)
	assert.Zero(t, db.badgeCount("u1"))
	assert.NotNil(t, db.user("u1").LastActiveAt)
}

func TestGrantExperienceCrossesBoundary(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)
	db.users["u1"].Experience = 190

	change, err := svc.GrantExperience(context.Background(), "u1", PointsCommentCreated, "comment")
	require.NoError(t, err)
	assert.True(t, change.LevelUp)
	assert.Equal(t, 2, change.NewLevel)
	assert.Equal(t, "Silver", change.NewTitle)

	badges, err := svc.Badges(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "Silver achieved", badges[0].Name)
	assert.Equal(t, "Reached level 2", badges[0].Description)
}

func TestGrantExperienceSkippingLevelsAwardsOneBadge(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)

	change, err := svc.GrantExperience(context.Background(), "u1", 600, "import")
	require.NoError(t, err)
	assert.True(t, change.LevelUp)
	assert.Equal(t, 3, change.NewLevel)
	assert.Equal(t, 1, db.badgeCount("u1"))
}

func TestGrantExperienceRejectsNonPositive(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)

	for _, points := range []int{0, -5} {
		_, err := svc.GrantExperience(context.Background(), "u1", points, "bad")
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	}
	assert.Zero(t, db.user("u1").Experience)
}

func TestGrantExperienceMissingAccount(t *testing.T) {
	svc, _ := newLedgerFixture()

	_, err := svc.GrantExperience(context.Background(), "ghost", 10, "comment")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestConcurrentGrantsLoseNothingAndBadgeOnce(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleStudent)
	db.users["u1"].Experience = 150

	const grants = 40
	var wg sync.WaitGroup
	var mu sync.Mutex
	levelUps := 0
	for i := 0; i < grants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			change, err := svc.GrantExperience(context.Background(), "u1", PointsLikeReceived, "like")
			if err != nil {
				t.Error(err)
				return
			}
			if change.LevelUp {
				mu.Lock()
				levelUps++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	user := db.user("u1")
	assert.Equal(t, 150+grants*PointsLikeReceived, user.Experience)
	assert.Equal(t, 2, user.CommunityLevel)
	assert.Equal(t, 1, levelUps)
	assert.Equal(t, 1, db.badgeCount("u1"))
}

func TestLevelNeverDecreasesAcrossGrants(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)

	previous := 1
	for i := 0; i < 60; i++ {
		change, err := svc.GrantExperience(context.Background(), "u1", 45, "post")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, change.NewLevel, previous)
		previous = change.NewLevel
	}
	assert.Equal(t, models.MaxLevel, previous)
	assert.Equal(t, models.MaxLevel-1, db.badgeCount("u1"))
}

func TestSetExperienceOverride(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)
	db.users["u1"].Experience = 1200
	db.users["u1"].CommunityLevel = 4
	db.users["u1"].CommunityTitle = "Platinum"
	db.badges = append(db.badges, models.Badge{UserID: "u1", Name: "Platinum achieved"})

	change, err := svc.SetExperience(context.Background(), "u1", 300)
	require.NoError(t, err)
	assert.False(t, change.LevelUp)
	user := db.user("u1")
	assert.Equal(t, 300, user.Experience)
	assert.Equal(t, 2, user.CommunityLevel)
	assert.Equal(t, "Silver", user.CommunityTitle)
	assert.Equal(t, 1, db.badgeCount("u1"), "an override never removes badges")

	change, err = svc.SetExperience(context.Background(), "u1", 2500)
	require.NoError(t, err)
	assert.True(t, change.LevelUp)
	assert.Equal(t, 5, db.user("u1").CommunityLevel)
	assert.Equal(t, 2, db.badgeCount("u1"))

	_, err = svc.SetExperience(context.Background(), "u1", -1)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLevelProgress(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)
	db.users["u1"].Experience = 350

	progress, err := svc.LevelProgress(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, progress.CurrentLevel)
	require.NotNil(t, progress.NextLevelExp)
	assert.Equal(t, 500, *progress.NextLevelExp)
	assert.Equal(t, 50, progress.ProgressPercent)

	_, err = svc.LevelProgress(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestBadgesCapsLimit(t *testing.T) {
	svc, db := newLedgerFixture()
	db.addUser("u1", models.RoleParent)
	for i := 0; i < 150; i++ {
		db.badges = append(db.badges, models.Badge{UserID: "u1", Name: "b"})
	}

	badges, err := svc.Badges(context.Background(), "u1", 1000)
	require.NoError(t, err)
	assert.Len(t, badges, maxBadgeLimit)
}
