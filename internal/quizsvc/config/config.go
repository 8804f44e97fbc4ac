package config

import (
	"os"
	"strconv"
	"time"

	"github.com/tamru/tambola-services/internal/quizsvc/errs"
)

// Config holds the game tunables. The block thresholds and the active
// phase length were observed as magic constants in earlier clients, so
// they are env-overridable rather than hard coded.
type Config struct {
	BoardSize      int // numbers 1..BoardSize
	PrepareSeconds int
	ActiveSeconds  int // question window, 15 or 30
	ScoringSeconds int

	PointsPerCorrect  int
	EarlyAdopterCount int // correct answers needed for early_adopter

	// FirstRowBlockWrong wrong answers inside row one permanently block
	// first_row. FullBoardBlockWrong wrong answers anywhere permanently
	// block full_board; when unset it is derived as
	// BoardSize - FullBoardSlack + 1.
	FirstRowBlockWrong  int
	FullBoardSlack      int
	FullBoardBlockWrong int

	ResetClearsPlayers bool

	WinnersCacheTTL time.Duration
	RetryDelay      time.Duration
}

func Default() Config {
	c := Config{
		BoardSize:          50,
		PrepareSeconds:     5,
		ActiveSeconds:      30,
		ScoringSeconds:     5,
		PointsPerCorrect:   10,
		EarlyAdopterCount:  5,
		FirstRowBlockWrong: 4,
		FullBoardSlack:     5,
		ResetClearsPlayers: false,
		WinnersCacheTTL:    3 * time.Second,
		RetryDelay:         4 * time.Second,
	}
	c.FullBoardBlockWrong = c.BoardSize - c.FullBoardSlack + 1
	return c
}

// Load reads overrides from the environment on top of Default.
func Load() (Config, error) {
	c := Default()

	if v := os.Getenv("ACTIVE_PHASE_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, errs.FatalConfigf("invalid ACTIVE_PHASE_SECONDS %q", v)
		}
		c.ActiveSeconds = n
	}

	if v := os.Getenv("FIRST_ROW_BLOCK_WRONG"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, errs.FatalConfigf("invalid FIRST_ROW_BLOCK_WRONG %q", v)
		}
		c.FirstRowBlockWrong = n
	}

	if v := os.Getenv("FULL_BOARD_BLOCK_WRONG"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c, errs.FatalConfigf("invalid FULL_BOARD_BLOCK_WRONG %q", v)
		}
		c.FullBoardBlockWrong = n
	}

	if v := os.Getenv("RESET_CLEARS_PLAYERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, errs.FatalConfigf("invalid RESET_CLEARS_PLAYERS %q", v)
		}
		c.ResetClearsPlayers = b
	}

	return c, nil
}
