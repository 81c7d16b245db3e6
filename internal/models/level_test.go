package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	cases := map[int]int{
		-5:    1,
		0:     1,
		199:   1,
		200:   2,
		499:   2,
		500:   3,
		999:   3,
		1000:  4,
		1999:  4,
		2000:  5,
		50000: 5,
	}
	for exp, want := range cases {
		assert.Equal(t, want, LevelFor(exp), "exp=%d", exp)
	}
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Bronze", TitleFor(1))
	assert.Equal(t, "Silver", TitleFor(2))
	assert.Equal(t, "Gold", TitleFor(3))
	assert.Equal(t, "Platinum", TitleFor(4))
	assert.Equal(t, "Diamond", TitleFor(5))
	assert.Equal(t, "Bronze", TitleFor(0))
	assert.Equal(t, "Diamond", TitleFor(9))
}

func TestBadgeFor(t *testing.T) {
	name, desc := BadgeFor(2)
	assert.Equal(t, "Silver achieved", name)
	assert.Equal(t, "Reached level 2", desc)
}

func TestLevelProgressFor(t *testing.T) {
	p := LevelProgressFor(350)
	assert.Equal(t, 2, p.CurrentLevel)
	require.NotNil(t, p.NextLevelExp)
	assert.Equal(t, 500, *p.NextLevelExp)
	assert.Equal(t, 50, p.ProgressPercent)

	p = LevelProgressFor(0)
	assert.Equal(t, 0, p.ProgressPercent)
	assert.Equal(t, 200, *p.NextLevelExp)

	top := LevelProgressFor(2500)
	assert.Equal(t, 5, top.CurrentLevel)
	assert.Nil(t, top.NextLevelExp)
	assert.Equal(t, 100, top.ProgressPercent)
}

func TestLevelProgressForIsDeterministic(t *testing.T) {
	assert.Equal(t, LevelProgressFor(777), LevelProgressFor(777))
}

func TestLevelConsistentWithTitleForAllExperience(t *testing.T) {
	for exp := 0; exp <= 2100; exp += 7 {
		p := LevelProgressFor(exp)
		assert.Equal(t, LevelFor(exp), p.CurrentLevel)
		assert.Equal(t, TitleFor(p.CurrentLevel), p.CurrentTitle)
		assert.GreaterOrEqual(t, p.ProgressPercent, 0)
		assert.LessOrEqual(t, p.ProgressPercent, 100)
	}
}
