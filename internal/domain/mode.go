package domain

// Mode is the interaction style a node's answer is generated in
type Mode string

const (
	ModeExplanatory Mode = "explanatory"
	ModeInquisitive Mode = "inquisitive"
	ModePlayful     Mode = "playful"
)

type weightedMode struct {
	mode   Mode
	weight float64
}

// modeWeights must sum to 1
var modeWeights = []weightedMode{
	{ModeExplanatory, 0.7},
	{ModeInquisitive, 0.2},
	{ModePlayful, 0.1},
}

// ChooseMode draws a mode with fixed 70/20/10 odds. r returns values in [0, 1).
func ChooseMode(r func() float64) Mode {
	x := r()
	acc := 0.0
	for _, wm := range modeWeights {
		acc += wm.weight
		if x < acc {
			return wm.mode
		}
	}
	return modeWeights[len(modeWeights)-1].mode
}

// Label is the name the answer service is prompted with
func (m Mode) Label() string {
	switch m {
	case ModeInquisitive:
		return "提问模式"
	case ModePlayful:
		return "游戏模式"
	default:
		return "解释模式"
	}
}

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	switch m {
	case ModeExplanatory, ModeInquisitive, ModePlayful:
		return true
	}
	return false
}
