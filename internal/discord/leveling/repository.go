package leveling

import (
	"errors"
	"fmt"
	"time"

	"github.com/code-wolf-byte/levelman/internal/database"
	"github.com/code-wolf-byte/levelman/internal/progression"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores leveling state. Every method that mutates state runs
// as a single transaction, so an action is either fully applied or not at
// all. Effects returned from a method must only run after it returns.
type Repository struct {
	db                *gorm.DB
	defaultBackground string
}

func NewRepository(db *gorm.DB, defaultBackground string) *Repository {
	return &Repository{db: db, defaultBackground: defaultBackground}
}

// Transfer is the result of an XP transfer.
type Transfer struct {
	Amount   int64
	Fee      int64
	Net      int64
	Sender   database.UserProgress
	Receiver progression.Outcome
}

// Stats are guild-wide aggregates, recomputed on every call.
type Stats struct {
	TotalUsers   int64   `json:"total_users"`
	TotalXP      int64   `json:"total_xp"`
	AverageLevel float64 `json:"average_level"`
}

// CreateModule inserts the leveling module row of a guild.
func (r *Repository) CreateModule(mod *database.Module) (*database.Module, error) {
	if err := r.db.Create(mod).Error; err != nil {
		return nil, fmt.Errorf("create module row: %w", err)
	}
	return mod, nil
}

// ReadModule returns the guild's leveling module row or
// gorm.ErrRecordNotFound.
func (r *Repository) ReadModule(guildID string) (*database.Module, error) {
	var mod database.Module
	err := r.db.
		Where(&database.Module{Name: name, GuildSnowflake: guildID}).
		Take(&mod).Error
	if err != nil {
		return nil, err
	}
	return &mod, nil
}

// UpdateModule writes the enabled flag, command toggles and config of an
// existing row.
func (r *Repository) UpdateModule(mod *database.Module) (*database.Module, error) {
	stored, err := r.ReadModule(mod.GuildSnowflake)
	if err != nil {
		return nil, err
	}
	stored.Enabled = mod.Enabled
	stored.Config = mod.Config
	stored.Commands = mod.Commands

	err = r.db.Model(stored).Select("Enabled", "Config", "Commands").Updates(stored).Error
	if err != nil {
		return nil, fmt.Errorf("update module row: %w", err)
	}
	return stored, nil
}

// forUpdate row-locks the selected progress rows where the dialect supports it.
func (r *Repository) forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == database.DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *Repository) load(tx *gorm.DB, guildID, userID string) (database.UserProgress, error) {
	var p database.UserProgress
	err := r.forUpdate(tx).
		Where("guild_snowflake = ? AND user_snowflake = ?", guildID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, progression.ErrNoProgress
	}
	return p, err
}

func (r *Repository) ensure(tx *gorm.DB, guildID, userID string) (database.UserProgress, bool, error) {
	p, err := r.load(tx, guildID, userID)
	if !errors.Is(err, progression.ErrNoProgress) {
		return p, false, err
	}
	p = database.UserProgress{
		GuildSnowflake: guildID,
		UserSnowflake:  userID,
		Background:     r.defaultBackground,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
	if res.Error != nil {
		return p, false, res.Error
	}
	if res.RowsAffected == 0 {
		p, err = r.load(tx, guildID, userID)
		return p, false, err
	}
	return p, true, nil
}

// unlock inserts the given achievements, skipping the ones already held, and
// returns an AchievementUnlocked effect for each new row. Existing rows keep
// their original timestamp.
func (r *Repository) unlock(tx *gorm.DB, guildID, userID string, keys []string, now time.Time) ([]progression.Effect, error) {
	var effects []progression.Effect
	for _, key := range keys {
		a, ok := progression.LookupAchievement(key)
		if !ok {
			return nil, fmt.Errorf("unknown achievement %q", key)
		}
		row := database.AchievementUnlock{
			GuildSnowflake: guildID,
			UserSnowflake:  userID,
			AchievementKey: key,
			UnlockedAt:     now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			effects = append(effects, progression.AchievementUnlocked{
				GuildID:     guildID,
				UserID:      userID,
				Achievement: a,
			})
		}
	}
	return effects, nil
}

// settle stores an outcome's progress and unlocks inside tx.
func (r *Repository) settle(tx *gorm.DB, out *progression.Outcome, now time.Time) error {
	if err := tx.Save(&out.Progress).Error; err != nil {
		return err
	}
	effects, err := r.unlock(tx, out.Progress.GuildSnowflake, out.Progress.UserSnowflake, out.Unlocks, now)
	if err != nil {
		return err
	}
	out.Effects = append(out.Effects, effects...)
	return nil
}

// EnsureProgress creates the member's row on first activity and unlocks the
// first-message achievement when it does.
func (r *Repository) EnsureProgress(guildID, userID string, now time.Time) (*progression.Outcome, error) {
	out := &progression.Outcome{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		p, created, err := r.ensure(tx, guildID, userID)
		if err != nil {
			return err
		}
		out.Progress = p
		if !created {
			return nil
		}
		out.Effects, err = r.unlock(tx, guildID, userID, []string{progression.AchievementFirstMessage}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GrantMessageXP applies passive message XP when the message cooldown has
// elapsed. The cooldown check and write happen in the same transaction.
func (r *Repository) GrantMessageXP(guildID, userID string, amount int64, now time.Time) (*progression.Outcome, error) {
	var out progression.Outcome
	err := r.db.Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, guildID, userID)
		if err != nil {
			return err
		}
		if err := progression.CheckMessage(p, now); err != nil {
			return err
		}
		out = progression.Advance(p, amount)
		out.Progress.LastActivityAt = now
		return r.settle(tx, &out, now)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddXP grants amount, at most progression.MaxGrant, to an existing member
// without touching any cooldown.
func (r *Repository) AddXP(guildID, userID string, amount int64, now time.Time) (*progression.Outcome, error) {
	if amount <= 0 || amount > progression.MaxGrant {
		return nil, progression.ErrInvalidAmount
	}
	var out progression.Outcome
	err := r.db.Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, guildID, userID)
		if err != nil {
			return err
		}
		out = progression.Advance(p, amount)
		return r.settle(tx, &out, now)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimDaily grants the daily reward, appends a claim marker and unlocks the
// streak achievement when enough claims fall in the trailing window.
func (r *Repository) ClaimDaily(guildID, userID string, now time.Time) (*progression.Outcome, error) {
	var out progression.Outcome
	err := r.db.Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, guildID, userID)
		if err != nil {
			return err
		}
		if err := progression.CheckDaily(p, now); err != nil {
			return err
		}

		out = progression.Advance(p, progression.DailyXP)
		out.Progress.DailyClaimedAt = now

		claim := database.DailyClaim{GuildSnowflake: guildID, UserSnowflake: userID, ClaimedAt: now}
		if err := tx.Create(&claim).Error; err != nil {
			return err
		}

		var claims []time.Time
		if err := tx.Model(&database.DailyClaim{}).
			Where("guild_snowflake = ? AND user_snowflake = ?", guildID, userID).
			Pluck("claimed_at", &claims).Error; err != nil {
			return err
		}
		if progression.StreakReached(claims, now) {
			out.Unlocks = append(out.Unlocks, progression.AchievementDailyStreak)
		}
		return r.settle(tx, &out, now)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GiveReputation adds one reputation point to the target. The cooldown is
// stamped on the giver. The returned outcome describes the target.
func (r *Repository) GiveReputation(guildID, giverID, targetID string, now time.Time) (*progression.Outcome, error) {
	var out progression.Outcome
	err := r.db.Transaction(func(tx *gorm.DB) error {
		giver, err := r.load(tx, guildID, giverID)
		if err != nil {
			return err
		}
		if err := progression.CheckReputation(giver, targetID, now); err != nil {
			return err
		}
		target, err := r.load(tx, guildID, targetID)
		if err != nil {
			return err
		}

		giver.ReputationGivenAt = now
		if err := tx.Save(&giver).Error; err != nil {
			return err
		}

		target.Reputation++
		out = progression.Outcome{
			Progress: target,
			Unlocks:  progression.ReputationAchievements(target.Reputation),
		}
		return r.settle(tx, &out, now)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferXP moves amount XP from sender to receiver minus the transfer fee.
// The receiver row is created if missing. Debit and credit commit together.
func (r *Repository) TransferXP(guildID, senderID, receiverID string, amount int64, now time.Time) (*Transfer, error) {
	t := &Transfer{Amount: amount}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		sender, err := r.load(tx, guildID, senderID)
		if err != nil {
			return err
		}
		if err := progression.CheckTransfer(sender, receiverID, amount); err != nil {
			return err
		}
		if _, _, err := r.ensure(tx, guildID, receiverID); err != nil {
			return err
		}
		receiver, err := r.load(tx, guildID, receiverID)
		if err != nil {
			return err
		}

		t.Fee, t.Net = progression.TransferFee(amount)

		sender.XP -= amount
		if err := tx.Save(&sender).Error; err != nil {
			return err
		}
		t.Sender = sender

		t.Receiver = progression.Advance(receiver, t.Net)
		return r.settle(tx, &t.Receiver, now)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// BuyItem debits the item's price and sets its background.
func (r *Repository) BuyItem(guildID, userID, itemKey string) (progression.ShopItem, error) {
	item, err := progression.LookupItem(itemKey)
	if err != nil {
		return item, err
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, guildID, userID)
		if err != nil {
			return err
		}
		if err := progression.CheckBalance(p, item.Price); err != nil {
			return err
		}
		p.XP -= item.Price
		p.Background = item.Background
		return tx.Save(&p).Error
	})
	return item, err
}

// update applies fn to an existing member's row.
func (r *Repository) update(guildID, userID string, fn func(p *database.UserProgress)) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, guildID, userID)
		if err != nil {
			return err
		}
		fn(&p)
		return tx.Save(&p).Error
	})
}

func (r *Repository) SetBackground(guildID, userID, url string) error {
	if !progression.ValidBackground(url) {
		return progression.ErrInvalidBackground
	}
	return r.update(guildID, userID, func(p *database.UserProgress) { p.Background = url })
}

func (r *Repository) ResetBackground(guildID, userID string) error {
	return r.update(guildID, userID, func(p *database.UserProgress) { p.Background = r.defaultBackground })
}

func (r *Repository) SetReminder(guildID, userID string, level int) error {
	if err := progression.CheckReminder(level); err != nil {
		return err
	}
	return r.update(guildID, userID, func(p *database.UserProgress) { p.LevelReminder = level })
}

func (r *Repository) ResetDaily(guildID, userID string) error {
	return r.update(guildID, userID, func(p *database.UserProgress) { p.DailyClaimedAt = time.Time{} })
}

func (r *Repository) ResetReputation(guildID, userID string) error {
	return r.update(guildID, userID, func(p *database.UserProgress) {
		p.Reputation = 0
		p.ReputationGivenAt = time.Time{}
	})
}

// ResetProgress zeroes a member's XP, level and background and clears their
// achievements and daily claims.
func (r *Repository) ResetProgress(guildID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		p, err := r.load(tx, guildID, userID)
		if err != nil {
			return err
		}
		p.XP = 0
		p.Level = 0
		p.Background = r.defaultBackground
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		member := "guild_snowflake = ? AND user_snowflake = ?"
		if err := tx.Where(member, guildID, userID).Delete(&database.AchievementUnlock{}).Error; err != nil {
			return err
		}
		return tx.Where(member, guildID, userID).Delete(&database.DailyClaim{}).Error
	})
}

// ResetGuild deletes every progress row, unlock and claim of the guild.
func (r *Repository) ResetGuild(guildID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&database.UserProgress{}, &database.AchievementUnlock{}, &database.DailyClaim{}} {
			if err := tx.Where("guild_snowflake = ?", guildID).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadProgress returns a member's row or progression.ErrNoProgress.
func (r *Repository) ReadProgress(guildID, userID string) (*database.UserProgress, error) {
	var p database.UserProgress
	err := r.db.
		Where("guild_snowflake = ? AND user_snowflake = ?", guildID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, progression.ErrNoProgress
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Achievements returns the unlock rows of a member, oldest first.
func (r *Repository) Achievements(guildID, userID string) ([]database.AchievementUnlock, error) {
	var rows []database.AchievementUnlock
	err := r.db.
		Where("guild_snowflake = ? AND user_snowflake = ?", guildID, userID).
		Order("unlocked_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// AchievementKeys returns the keys a member has unlocked.
func (r *Repository) AchievementKeys(guildID, userID string) ([]string, error) {
	rows, err := r.Achievements(guildID, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.AchievementKey)
	}
	return keys, nil
}

// TopUsers returns a page of the guild leaderboard by level, then XP.
func (r *Repository) TopUsers(guildID string, limit, offset int) ([]database.UserProgress, error) {
	var users []database.UserProgress
	err := r.db.
		Where("guild_snowflake = ?", guildID).
		Order("level DESC").
		Order("xp DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

// GuildUserIDs returns up to limit member ids of the guild.
func (r *Repository) GuildUserIDs(guildID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.Model(&database.UserProgress{}).
		Where("guild_snowflake = ?", guildID).
		Order("id ASC").
		Limit(limit).
		Pluck("user_snowflake", &ids).Error
	return ids, err
}

func (r *Repository) CountUsers(guildID string) (int64, error) {
	var n int64
	err := r.db.Model(&database.UserProgress{}).
		Where("guild_snowflake = ?", guildID).
		Count(&n).Error
	return n, err
}

func (r *Repository) ServerStats(guildID string) (Stats, error) {
	var s Stats
	err := r.db.Model(&database.UserProgress{}).
		Select("COUNT(*) AS total_users, COALESCE(SUM(xp), 0) AS total_xp, COALESCE(AVG(level), 0) AS average_level").
		Where("guild_snowflake = ?", guildID).
		Scan(&s).Error
	return s, err
}

// RankPosition is one plus the number of members strictly ahead of the
// member: a higher level, or the same level with more XP.
func (r *Repository) RankPosition(guildID, userID string) (int64, error) {
	p, err := r.ReadProgress(guildID, userID)
	if err != nil {
		return 0, err
	}
	var ahead int64
	err = r.db.Model(&database.UserProgress{}).
		Where("guild_snowflake = ?", guildID).
		Where("level > ? OR (level = ? AND xp > ?)", p.Level, p.Level, p.XP).
		Count(&ahead).Error
	return ahead + 1, err
}
