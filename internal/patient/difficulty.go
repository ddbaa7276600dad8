package patient

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty is the game tier. It widens the disease pool and degrades how
// faithfully the patient describes their condition.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ErrInvalidDifficulty is returned for anything other than easy, medium or
// hard.
var ErrInvalidDifficulty = errors.New("invalid difficulty")

// Difficulties lists all tiers from easiest to hardest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts a tier name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
	return d, nil
}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

func (d Difficulty) String() string { return string(d) }
