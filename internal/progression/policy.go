package progression

import (
	"regexp"
	"time"

	"github.com/code-wolf-byte/levelman/internal/database"
)

const (
	MessageCooldown    = time.Minute
	DailyCooldown      = 24 * time.Hour
	ReputationCooldown = 24 * time.Hour

	MinTransfer        = 1
	MaxTransfer        = 1000
	TransferFeePercent = 10

	MinReminderLevel = 1
	MaxReminderLevel = 50
)

const (
	ActionMessage    = "message XP"
	ActionDaily      = "daily claim"
	ActionReputation = "reputation"
)

func checkCooldown(action string, last, now time.Time, window time.Duration) error {
	if last.IsZero() {
		return nil
	}
	elapsed := now.Sub(last)
	if elapsed >= window {
		return nil
	}
	return &CooldownError{Action: action, Remaining: window - elapsed}
}

// CheckMessage gates passive message XP on LastActivityAt.
func CheckMessage(p database.UserProgress, now time.Time) error {
	return checkCooldown(ActionMessage, p.LastActivityAt, now, MessageCooldown)
}

// CheckDaily gates the daily claim on DailyClaimedAt.
func CheckDaily(p database.UserProgress, now time.Time) error {
	return checkCooldown(ActionDaily, p.DailyClaimedAt, now, DailyCooldown)
}

// CheckReputation validates a reputation grant. The cooldown belongs to the
// giver, so one grant per day is allowed regardless of target.
func CheckReputation(giver database.UserProgress, targetID string, now time.Time) error {
	if giver.UserSnowflake == targetID {
		return ErrSelfTarget
	}
	return checkCooldown(ActionReputation, giver.ReputationGivenAt, now, ReputationCooldown)
}

// TransferFee splits amount into the fee removed from circulation and the net
// credited to the receiver. The fee rounds down.
func TransferFee(amount int64) (fee, net int64) {
	fee = amount * TransferFeePercent / 100
	return fee, amount - fee
}

// CheckTransfer validates an XP transfer from sender before any mutation.
func CheckTransfer(sender database.UserProgress, receiverID string, amount int64) error {
	if sender.UserSnowflake == receiverID {
		return ErrSelfTarget
	}
	if amount < MinTransfer || amount > MaxTransfer {
		return ErrInvalidAmount
	}
	return CheckBalance(sender, amount)
}

// CheckBalance requires p to hold at least amount XP.
func CheckBalance(p database.UserProgress, amount int64) error {
	if p.XP < amount {
		return &InsufficientXPError{Required: amount, Available: p.XP}
	}
	return nil
}

// CheckReminder validates a reminder target level.
func CheckReminder(level int) error {
	if level < MinReminderLevel || level > MaxReminderLevel {
		return ErrInvalidReminder
	}
	return nil
}

var imageURLPattern = regexp.MustCompile(`(?i)\.(jpeg|jpg|png)(\?.*)?$`)

// ValidBackground reports whether url points at a png or jpeg image.
func ValidBackground(url string) bool {
	return imageURLPattern.MatchString(url)
}

// ShopItem is a purchasable profile background.
type ShopItem struct {
	Key        string
	Name       string
	Price      int64
	Background string
}

var Shop = []ShopItem{
	{Key: "golden", Name: "Golden Matrix", Price: 5000, Background: "https://i.imgur.com/golden-bg.png"},
	{Key: "vip", Name: "VIP Cyber", Price: 10000, Background: "https://i.imgur.com/vip-bg.png"},
}

// LookupItem finds a shop item by key.
func LookupItem(key string) (ShopItem, error) {
	for _, it := range Shop {
		if it.Key == key {
			return it, nil
		}
	}
	return ShopItem{}, ErrUnknownItem
}

// PublicBackground is a free background anyone can set.
type PublicBackground struct {
	Name string
	URL  string
}

var PublicBackgrounds = []PublicBackground{
	{Name: "Cyber Matrix", URL: "https://i.imgur.com/4L1L4uA.png"},
	{Name: "Digital Ocean", URL: "https://i.imgur.com/6Kk3V9x.png"},
	{Name: "Neon Grid", URL: "https://i.imgur.com/0JqOQmP.png"},
}
