package database

import (
	"time"

	"gorm.io/datatypes"
)

// Module is the per-guild switchboard for a bot module: enabled flag,
// free-form JSON config and the enabled state of each command.
type Module struct {
	ID             uint   `gorm:"primarykey;autoIncrement"`
	GuildSnowflake string `gorm:"index"`
	Name           string
	Description    string
	Enabled        bool `gorm:"default:false"`
	Config         datatypes.JSON
	Commands       datatypes.JSON
	CreatedAt      time.Time // Managed by GORM
	UpdatedAt      time.Time // Managed by GORM
}

// UserProgress is a member's leveling state in one guild.
// XP counts toward the current level only and is consumed on level-up.
type UserProgress struct {
	ID             uint   `gorm:"primaryKey"`
	GuildSnowflake string `gorm:"uniqueIndex:idx_progress_member;not null"`
	UserSnowflake  string `gorm:"uniqueIndex:idx_progress_member;not null"`

	XP    int64 `gorm:"not null;default:0"`
	Level int   `gorm:"not null;default:0;index"`

	LastActivityAt    time.Time
	DailyClaimedAt    time.Time
	Reputation        int64 `gorm:"not null;default:0"`
	ReputationGivenAt time.Time

	Background    string
	LevelReminder int `gorm:"not null;default:0"` // 0 means no reminder

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AchievementUnlock records that a member unlocked an achievement. Rows are
// never updated; the unique index makes unlocking idempotent.
type AchievementUnlock struct {
	ID             uint      `gorm:"primaryKey"`
	GuildSnowflake string    `gorm:"uniqueIndex:idx_unlock_member_key;not null"`
	UserSnowflake  string    `gorm:"uniqueIndex:idx_unlock_member_key;not null"`
	AchievementKey string    `gorm:"uniqueIndex:idx_unlock_member_key;not null"`
	UnlockedAt     time.Time `gorm:"not null"`
}

// DailyClaim is the dated marker appended on each daily claim, used to
// compute the claim streak.
type DailyClaim struct {
	ID             uint      `gorm:"primaryKey"`
	GuildSnowflake string    `gorm:"index:idx_claim_member;not null"`
	UserSnowflake  string    `gorm:"index:idx_claim_member;not null"`
	ClaimedAt      time.Time `gorm:"not null"`
}
