package win

import "github.com/tamru/tambola-services/internal/quizsvc/config"

// The five winning conditions. Exactly one player per game may ever hold
// each; the names double as the flag keys on the player document.
const (
	CondEarlyAdopter = "early_adopter"
	CondFirstRow     = "first_row" // "gas saver"
	CondFourCorners  = "four_corners"
	CondTwoRows      = "two_rows" // "miner of the day"
	CondFullBoard    = "full_board"
)

// Conditions returns the fixed condition set in evaluation order.
func Conditions() []string {
	return []string{CondEarlyAdopter, CondFirstRow, CondFourCorners, CondTwoRows, CondFullBoard}
}

// Rules parameterizes the predicates by board geometry and the block
// thresholds. All methods are pure functions over the player's answer
// sets; the only state in the system is the flags kept on the player.
type Rules struct {
	BoardSize           int
	RowLength           int
	EarlyAdopterCount   int
	FirstRowBlockWrong  int
	FullBoardBlockWrong int
}

func RulesFromConfig(c config.Config) Rules {
	return Rules{
		BoardSize:           c.BoardSize,
		RowLength:           c.BoardSize / 5,
		EarlyAdopterCount:   c.EarlyAdopterCount,
		FirstRowBlockWrong:  c.FirstRowBlockWrong,
		FullBoardBlockWrong: c.FullBoardBlockWrong,
	}
}

// corners returns the four corner numbers of the board laid out as five
// rows of RowLength: first and last of the first row, first and last of
// the last row.
func (r Rules) corners() [4]int {
	return [4]int{1, r.RowLength, r.BoardSize - r.RowLength + 1, r.BoardSize}
}

// EarlyAdopter is true iff the first EarlyAdopterCount numbers were all
// answered without a miss and at least that many answers are correct.
// One wrong answer among them keeps it false forever.
func (r Rules) EarlyAdopter(correct, incorrect map[int]bool) bool {
	for n := 1; n <= r.EarlyAdopterCount; n++ {
		if incorrect[n] {
			return false
		}
	}
	return len(correct) >= r.EarlyAdopterCount
}

// FirstRow is true iff every number of row one is answered correctly.
// Once FirstRowBlockWrong of them are wrong the row is treated as
// unreachable and the predicate stays false.
func (r Rules) FirstRow(correct, incorrect map[int]bool) bool {
	wrong := 0
	for n := 1; n <= r.RowLength; n++ {
		if incorrect[n] {
			wrong++
		}
	}
	if wrong >= r.FirstRowBlockWrong {
		return false
	}
	for n := 1; n <= r.RowLength; n++ {
		if !correct[n] {
			return false
		}
	}
	return true
}

// FourCorners is true iff all four corners are correct and none of them
// was ever answered wrong.
func (r Rules) FourCorners(correct, incorrect map[int]bool) bool {
	for _, n := range r.corners() {
		if incorrect[n] {
			return false
		}
	}
	for _, n := range r.corners() {
		if !correct[n] {
			return false
		}
	}
	return true
}

// TwoRows is true iff at least two of the five disjoint rows are fully
// correct. No block short-circuit: rows are disjoint, so this stays
// re-checkable for the whole game.
func (r Rules) TwoRows(correct, incorrect map[int]bool) bool {
	complete := 0
	for row := 0; row < r.BoardSize/r.RowLength; row++ {
		full := true
		for n := row*r.RowLength + 1; n <= (row+1)*r.RowLength; n++ {
			if !correct[n] {
				full = false
				break
			}
		}
		if full {
			complete++
		}
	}
	return complete >= 2
}

// FullBoard is true iff the whole board is answered correctly; once
// FullBoardBlockWrong answers are wrong that is impossible and the
// predicate stays false.
func (r Rules) FullBoard(correct, incorrect map[int]bool) bool {
	if len(incorrect) >= r.FullBoardBlockWrong {
		return false
	}
	return len(correct) >= r.BoardSize
}

// Achieved dispatches to the predicate for cond. Unknown conditions are
// never achieved.
func (r Rules) Achieved(cond string, correct, incorrect map[int]bool) bool {
	switch cond {
	case CondEarlyAdopter:
		return r.EarlyAdopter(correct, incorrect)
	case CondFirstRow:
		return r.FirstRow(correct, incorrect)
	case CondFourCorners:
		return r.FourCorners(correct, incorrect)
	case CondTwoRows:
		return r.TwoRows(correct, incorrect)
	case CondFullBoard:
		return r.FullBoard(correct, incorrect)
	}
	return false
}

// EvaluateNewWins returns the conditions that are true for the given
// answer sets and not yet flagged won. Idempotent: identical inputs give
// identical output.
func (r Rules) EvaluateNewWins(correct, incorrect map[int]bool, alreadyWon map[string]bool) []string {
	var wins []string
	for _, cond := range Conditions() {
		if alreadyWon[cond] {
			continue
		}
		if r.Achieved(cond, correct, incorrect) {
			wins = append(wins, cond)
		}
	}
	return wins
}
