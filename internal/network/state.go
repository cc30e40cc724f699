package network

import (
	"context"

	"github.com/nvandessel/settle/internal/logging"
)

// State is the position of a network within one trial.
type State int

const (
	StateIdle State = iota
	StateSettlingMinus
	StateRecordedMinus
	StateSettlingPlus
	StateRecordedPlus
	StateLearned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSettlingMinus:
		return "settling-minus"
	case StateRecordedMinus:
		return "recorded-minus"
	case StateSettlingPlus:
		return "settling-plus"
	case StateRecordedPlus:
		return "recorded-plus"
	case StateLearned:
		return "learned"
	default:
		return "unknown"
	}
}

func (n *Network) setState(s State) {
	n.logger.Log(context.Background(), logging.LevelTrace, "state", "network", n.name, "from", n.state, "to", s)
	n.state = s
}
