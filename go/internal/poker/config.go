package poker

import "github.com/mcdev12/poker-everest/go/internal/models"

// Field limits applied to client supplied text.
const (
	maxGameNameLen  = 100
	maxUserNameLen  = 40
	maxAvatarLen    = 64
	maxTaskNameLen  = 200
	maxDeckSize     = 50
	maxDeckLabelLen = 16
	maxEmojiLen     = 16
)

// Config holds room policy for the service.
type Config struct {
	MaxPlayers      int
	MaxTimerSeconds int
	DefaultDeck     []string
	DeckPresets     map[string][]string
}

// DefaultConfig returns the standard room policy.
func DefaultConfig() Config {
	return Config{
		MaxPlayers:      20,
		MaxTimerSeconds: 3600,
		DefaultDeck:     models.DaysDeck,
		DeckPresets: map[string][]string{
			"days":      models.DaysDeck,
			"fibonacci": {"0", "1", "2", "3", "5", "8", "13", "21", "?", "☕"},
			"tshirt":    {"XS", "S", "M", "L", "XL", "?", "☕"},
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = def.MaxPlayers
	}
	if c.MaxTimerSeconds <= 0 {
		c.MaxTimerSeconds = def.MaxTimerSeconds
	}
	if len(c.DefaultDeck) == 0 {
		c.DefaultDeck = def.DefaultDeck
	}
	if c.DeckPresets == nil {
		c.DeckPresets = def.DeckPresets
	}
	return c
}
