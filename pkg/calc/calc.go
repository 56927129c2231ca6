// Package calc implements the calculation server's "add" tool.
package calc

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ToolName is the name of the addition tool.
const ToolName = "add"

// ErrInvalidInput is returned when the arguments are not two numbers.
var ErrInvalidInput = errors.New("Invalid input: 'a' and 'b' must be numbers")

// AddArgs are the arguments of the add tool.
type AddArgs struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// DecodeAddArgs decodes and validates a JSON object carrying numeric "a" and
// "b" fields. Missing, null or non-numeric fields are rejected.
func DecodeAddArgs(raw []byte) (AddArgs, error) {
	var in struct {
		A *float64 `json:"a"`
		B *float64 `json:"b"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return AddArgs{}, ErrInvalidInput
	}
	if in.A == nil || in.B == nil {
		return AddArgs{}, ErrInvalidInput
	}
	return AddArgs{A: *in.A, B: *in.B}, nil
}

// Add returns the sum rendered as text.
func Add(_ context.Context, args AddArgs) (string, error) {
	return FormatNumber(args.A + args.B), nil
}

// FormatNumber renders f the way JavaScript's String(number) does: shortest
// round-trip digits, exponent notation below 1e-6 and from 1e21 upwards.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs < 1e-6 || abs >= 1e21 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
