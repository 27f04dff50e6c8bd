// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 majeff, mosquito-pt2d

package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/majeff/mosquito-pt2d/internal/mathx"
)

var (
	// ErrFormat means the line is neither <...> nor a '#' passthrough
	ErrFormat = errors.New("invalid command format")

	// ErrUnknownCommand means the keyword is not in the vocabulary
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidParameter covers missing, non-numeric and out of range
	// parameters
	ErrInvalidParameter = errors.New("invalid parameter")
)

// RawPrefix marks a line forwarded to the bus as typed
const RawPrefix = '#'

// maxDigits keeps integer tokens well inside int range
const maxDigits = 9

type parseFunc func(params string) (Command, error)

var keywords = map[string]parseFunc{
	"MOVE":        parseMove,
	"MOVETO":      parseMove,
	"MOVER":       parseMoveBy,
	"MOVEBY":      parseMoveBy,
	"STOP":        fixed(Stop{}),
	"HOME":        fixed(Home{}),
	"SPEED":       parseSpeed,
	"SETSPEED":    parseSpeed,
	"POS":         fixed(GetPosition{}),
	"GETPOS":      fixed(GetPosition{}),
	"READ":        fixed(GetPosition{}),
	"READPOS":     fixed(GetPosition{}),
	"STATUS":      fixed(GetStatus{View: ViewFull}),
	"INFO":        fixed(GetStatus{View: ViewFull}),
	"TEMP":        fixed(GetStatus{View: ViewTemperature}),
	"TEMPERATURE": fixed(GetStatus{View: ViewTemperature}),
	"VOLT":        fixed(GetStatus{View: ViewVoltage}),
	"VOLTAGE":     fixed(GetStatus{View: ViewVoltage}),
	"READANGLE":   parseReadAngle,
	"READVOLTEMP": parseReadVoltTemp,
	"CAL":         fixed(Calibrate{}),
	"CALIBRATE":   fixed(Calibrate{}),
	"CONFIGSERVO": parseConfigServo,
	"SETID":       parseSetID,
	"RAW":         parseRaw,
	"GETINFO":     fixed(GetInfo{}),
	"DETECT":      fixed(Detect{}),
	"SCAN":        fixed(Detect{}),
	"STATS":       fixed(Stats{}),
}

// Parse decodes one host line. Keywords are case-insensitive. Lines that
// start with '#' become a verbatim Raw command.
func Parse(line string) (Command, error) {
	if line == "" {
		return nil, ErrFormat
	}
	if line[0] == RawPrefix {
		return Raw{Payload: line, Verbatim: true}, nil
	}
	if len(line) < 2 || line[0] != '<' || line[len(line)-1] != '>' {
		return nil, ErrFormat
	}

	inner := line[1 : len(line)-1]
	keyword, params, _ := strings.Cut(inner, ":")
	keyword = strings.ToUpper(strings.TrimSpace(keyword))

	parse, ok := keywords[keyword]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, keyword)
	}
	return parse(params)
}

func fixed(c Command) parseFunc {
	return func(string) (Command, error) { return c, nil }
}

// ParseInt accepts an optional sign followed by digits, with optional
// surrounding spaces. Anything else is rejected.
func ParseInt(tok string) (int, error) {
	s := strings.Trim(tok, " ")
	digits := s
	if strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}
	if digits == "" || len(digits) > maxDigits {
		return 0, fmt.Errorf("%w: %q", ErrInvalidParameter, tok)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidParameter, tok)
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidParameter, tok)
	}
	return v, nil
}

// ints parses exactly n comma separated integers
func ints(params string, n int) ([]int, error) {
	if strings.TrimSpace(params) == "" {
		return nil, fmt.Errorf("%w: missing", ErrInvalidParameter)
	}
	fields := strings.Split(params, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("%w: want %d values, got %d", ErrInvalidParameter, n, len(fields))
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := ParseInt(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func address(v int) (uint8, error) {
	if !mathx.Between(v, AddressMin, AddressMax) {
		return 0, fmt.Errorf("%w: address %d out of range %d-%d", ErrInvalidParameter, v, AddressMin, AddressMax)
	}
	return uint8(v), nil
}

func parseMove(params string) (Command, error) {
	v, err := ints(params, 2)
	if err != nil {
		return nil, err
	}
	return MoveAbsolute{Pan: v[0], Tilt: v[1]}, nil
}

func parseMoveBy(params string) (Command, error) {
	v, err := ints(params, 2)
	if err != nil {
		return nil, err
	}
	return MoveRelative{DeltaPan: v[0], DeltaTilt: v[1]}, nil
}

func parseSpeed(params string) (Command, error) {
	v, err := ints(params, 1)
	if err != nil {
		return nil, err
	}
	if !mathx.Between(v[0], SpeedMin, SpeedMax) {
		return nil, fmt.Errorf("%w: speed %d out of range %d-%d", ErrInvalidParameter, v[0], SpeedMin, SpeedMax)
	}
	return SetSpeed{Value: v[0]}, nil
}

func parseSingleAddress(params string) (uint8, error) {
	v, err := ints(params, 1)
	if err != nil {
		return 0, err
	}
	return address(v[0])
}

func parseReadAngle(params string) (Command, error) {
	id, err := parseSingleAddress(params)
	if err != nil {
		return nil, err
	}
	return ReadAngle{Address: id}, nil
}

func parseReadVoltTemp(params string) (Command, error) {
	id, err := parseSingleAddress(params)
	if err != nil {
		return nil, err
	}
	return ReadVoltTemp{Address: id}, nil
}

func parseConfigServo(params string) (Command, error) {
	id, err := parseSingleAddress(params)
	if err != nil {
		return nil, err
	}
	return ConfigureServo{Address: id}, nil
}

func parseSetID(params string) (Command, error) {
	v, err := ints(params, 2)
	if err != nil {
		return nil, err
	}
	pan, err := address(v[0])
	if err != nil {
		return nil, err
	}
	tilt, err := address(v[1])
	if err != nil {
		return nil, err
	}
	if pan == tilt {
		return nil, fmt.Errorf("%w: pan and tilt share address %d", ErrInvalidParameter, pan)
	}
	return SetID{Pan: pan, Tilt: tilt}, nil
}

func parseRaw(params string) (Command, error) {
	if params == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidParameter)
	}
	return Raw{Payload: params}, nil
}
