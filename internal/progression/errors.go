package progression

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoProgress        = errors.New("user has no progress yet")
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrInvalidAmount     = errors.New("amount out of range")
	ErrUnknownItem       = errors.New("unknown shop item")
	ErrInvalidBackground = errors.New("invalid background url")
	ErrInvalidReminder   = errors.New("invalid reminder level")
)

// CooldownError denies an action whose cooldown has not elapsed yet.
type CooldownError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s on cooldown for another %s", e.Action, e.Remaining)
}

// Minutes is the remaining wait rounded up to whole minutes.
func (e *CooldownError) Minutes() int64 {
	m := int64(e.Remaining / time.Minute)
	if e.Remaining%time.Minute != 0 {
		m++
	}
	return m
}

// InsufficientXPError denies a debit larger than the available XP.
type InsufficientXPError struct {
	Required  int64
	Available int64
}

func (e *InsufficientXPError) Error() string {
	return fmt.Sprintf("need %d XP, have %d", e.Required, e.Available)
}
