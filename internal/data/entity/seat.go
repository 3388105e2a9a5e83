package entity

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidSeatCode   = errors.New("invalid seat code")
	ErrDuplicateSeatCode = errors.New("duplicate seat code")
	ErrNoSeatCodes       = errors.New("at least one seat code is required")
)

var seatCodePattern = regexp.MustCompile(`^R(\d+)C(\d+)$`)

type Seat struct {
	Base
	ShowtimeID uuid.UUID `db:"showtime_id"`
	Row        int       `db:"seat_row"`
	Column     int       `db:"seat_column"`
	Occupied   bool      `db:"occupied"`
}

func (s *Seat) Code() string {
	return SeatCode(s.Row, s.Column)
}

func (s *Seat) Position() SeatPosition {
	return SeatPosition{Row: s.Row, Column: s.Column}
}

// SeatPosition is a 1-based (row, column) pair in a showtime grid.
type SeatPosition struct {
	Row    int
	Column int
}

func (p SeatPosition) Code() string {
	return SeatCode(p.Row, p.Column)
}

// SeatCode renders the external seat identifier, e.g. R3C7.
func SeatCode(row, column int) string {
	return fmt.Sprintf("R%dC%d", row, column)
}

// ParseSeatCode is the inverse of SeatCode. Codes are case-insensitive and
// rows and columns start at 1.
func ParseSeatCode(code string) (SeatPosition, error) {
	m := seatCodePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(code)))
	if m == nil {
		return SeatPosition{}, fmt.Errorf("%w: %q", ErrInvalidSeatCode, code)
	}

	row, err := strconv.Atoi(m[1])
	if err != nil {
		return SeatPosition{}, fmt.Errorf("%w: %q", ErrInvalidSeatCode, code)
	}
	col, err := strconv.Atoi(m[2])
	if err != nil {
		return SeatPosition{}, fmt.Errorf("%w: %q", ErrInvalidSeatCode, code)
	}
	if row < 1 || col < 1 {
		return SeatPosition{}, fmt.Errorf("%w: %q", ErrInvalidSeatCode, code)
	}

	return SeatPosition{Row: row, Column: col}, nil
}

// ParseSeatCodes parses a non-empty batch of codes and rejects repeats,
// keeping request order.
func ParseSeatCodes(codes []string) ([]SeatPosition, error) {
	if len(codes) == 0 {
		return nil, ErrNoSeatCodes
	}

	positions := make([]SeatPosition, 0, len(codes))
	seen := make(map[SeatPosition]struct{}, len(codes))
	for _, code := range codes {
		p, err := ParseSeatCode(code)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSeatCode, p.Code())
		}
		seen[p] = struct{}{}
		positions = append(positions, p)
	}

	return positions, nil
}

// SeatCodes renders positions back to canonical codes.
func SeatCodes(positions []SeatPosition) []string {
	codes := make([]string, len(positions))
	for i, p := range positions {
		codes[i] = p.Code()
	}
	return codes
}
