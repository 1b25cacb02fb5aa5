package ingest

import "strings"

// Kind is the protocol role of a legacy agent message.
type Kind int

const (
	// KindInventory is a full inventory submission.
	KindInventory Kind = iota
	// KindHandshake is the PROLOG probe an agent sends before deciding
	// whether to upload its inventory.
	KindHandshake
)

const (
	probeMarker    = "PROLOG"
	hardwareMarker = "<HARDWARE"
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	default:
		return "inventory"
	}
}

// Classify decides whether decoded text is a handshake or a full
// submission. It only looks for marker substrings, so it is safe on
// fragments that are not well-formed XML.
func Classify(text string) Kind {
	if strings.Contains(text, probeMarker) && !strings.Contains(text, hardwareMarker) {
		return KindHandshake
	}
	return KindInventory
}
