// Package command parses the textual control grammar. The wire forms are
// the ones the original serial controller spoke: bare verbs plus an UPDATE
// carrying road, count and emergency fields in either space- or
// colon-separated framing.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

// Kind identifies a parsed command verb.
type Kind int

const (
	KindStart Kind = iota
	KindStop
	KindStatus
	KindHealth
	KindUpdate
)

// Command is one validated control command.
type Command struct {
	Kind   Kind
	Update types.UpdateParams // set when Kind == KindUpdate
}

func invalid(msg, hint string) *types.Error {
	return types.NewError(types.ErrInvalidCommand, msg, types.ErrTypeInvalidCommand, false, hint)
}

// Parse converts one input line into a Command. Verbs are case-insensitive.
// UPDATE accepts both "UPDATE <road> <count> <emergency>" and the legacy
// "UPDATE:<road>:<count>:<emergency>" framing.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, invalid("empty command", "")
	}

	fields := strings.Fields(line)
	if len(fields) == 1 && strings.Contains(fields[0], ":") {
		fields = strings.Split(fields[0], ":")
	}

	switch strings.ToUpper(fields[0]) {
	case "START":
		if len(fields) != 1 {
			return Command{}, invalid("START takes no arguments", "")
		}
		return Command{Kind: KindStart}, nil
	case "STOP":
		if len(fields) != 1 {
			return Command{}, invalid("STOP takes no arguments", "")
		}
		return Command{Kind: KindStop}, nil
	case "STATUS":
		if len(fields) != 1 {
			return Command{}, invalid("STATUS takes no arguments", "")
		}
		return Command{Kind: KindStatus}, nil
	case "HEALTH":
		if len(fields) != 1 {
			return Command{}, invalid("HEALTH takes no arguments", "")
		}
		return Command{Kind: KindHealth}, nil
	case "UPDATE":
		return parseUpdate(fields[1:])
	}
	return Command{}, invalid(fmt.Sprintf("unknown command %q", fields[0]),
		"expected START, STOP, STATUS, HEALTH or UPDATE")
}

func parseUpdate(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, invalid("UPDATE requires road, count and emergency fields",
			"usage: UPDATE <road> <count> <true|false>")
	}

	roadID, err := strconv.Atoi(args[0])
	if err != nil {
		return Command{}, invalid(fmt.Sprintf("road %q is not an integer", args[0]), "")
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return Command{}, invalid(fmt.Sprintf("count %q is not an integer", args[1]), "")
	}
	if count < 0 {
		return Command{}, invalid("count must be non-negative", "")
	}
	emergency, err := strconv.ParseBool(strings.ToLower(args[2]))
	if err != nil {
		return Command{}, invalid(fmt.Sprintf("emergency %q is not a boolean", args[2]), "")
	}

	return Command{
		Kind:   KindUpdate,
		Update: types.UpdateParams{Road: roadID, Count: count, Emergency: emergency},
	}, nil
}
