package models

import "fmt"

// MaxLevel is the highest community level.
const MaxLevel = 5

type levelTier struct {
	level   int
	title   string
	minExp  int
	nextExp int // 0 for the open-ended top tier
}

var levelTiers = [MaxLevel]levelTier{
	{level: 1, title: "Bronze", minExp: 0, nextExp: 200},
	{level: 2, title: "Silver", minExp: 200, nextExp: 500},
	{level: 3, title: "Gold", minExp: 500, nextExp: 1000},
	{level: 4, title: "Platinum", minExp: 1000, nextExp: 2000},
	{level: 5, title: "Diamond", minExp: 2000},
}

// LevelFor maps experience to its level. Negative input is treated as zero.
func LevelFor(exp int) int {
	for i := len(levelTiers) - 1; i >= 0; i-- {
		if exp >= levelTiers[i].minExp {
			return levelTiers[i].level
		}
	}
	return 1
}

// TitleFor returns the display title for level, clamping out-of-range values.
func TitleFor(level int) string {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelTiers[level-1].title
}

// BadgeFor describes the badge earned on reaching level.
func BadgeFor(level int) (name, description string) {
	return TitleFor(level) + " achieved", fmt.Sprintf("Reached level %d", level)
}

// LevelChange is the outcome of an experience grant.
type LevelChange struct {
	LevelUp    bool   `json:"level_up"`
	NewLevel   int    `json:"new_level"`
	NewTitle   string `json:"new_title"`
	Experience int    `json:"experience"`
}

// LevelProgress reports how far an account is through its current level.
type LevelProgress struct {
	CurrentLevel    int    `json:"current_level"`
	CurrentTitle    string `json:"current_title"`
	CurrentExp      int    `json:"current_exp"`
	NextLevelExp    *int   `json:"next_level_exp"`
	ProgressPercent int    `json:"progress_percent"`
}

// LevelProgressFor is a pure function of experience.
func LevelProgressFor(exp int) LevelProgress {
	level := LevelFor(exp)
	tier := levelTiers[level-1]
	progress := LevelProgress{
		CurrentLevel: level,
		CurrentTitle: tier.title,
		CurrentExp:   exp,
	}
	if tier.nextExp == 0 {
		progress.ProgressPercent = 100
		return progress
	}

	next := tier.nextExp
	progress.NextLevelExp = &next
	pct := (exp - tier.minExp) * 100 / (tier.nextExp - tier.minExp)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	progress.ProgressPercent = pct
	return progress
}
