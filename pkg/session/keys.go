package session

import "strings"

// Key is a movement or speed-mode control
type Key int

const (
	KeyForward Key = iota
	KeyBack
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyTurbo
	KeySlow
	numKeys
)

var keyNames = map[string]Key{
	"w":       KeyForward,
	"s":       KeyBack,
	"a":       KeyLeft,
	"d":       KeyRight,
	" ":       KeyUp,
	"space":   KeyUp,
	"control": KeyDown,
	"ctrl":    KeyDown,
	"shift":   KeyTurbo,
	"alt":     KeySlow,
}

// ParseKey maps a browser key name (KeyboardEvent.key) to a Key
func ParseKey(name string) (Key, bool) {
	k, ok := keyNames[strings.ToLower(name)]
	return k, ok
}
