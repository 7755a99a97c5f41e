package tally

import "strings"

type commandKind uint8

const (
	cmdNone commandKind = iota
	cmdIncrement
	cmdReset
	cmdShow
	cmdHelp
	cmdInvalid
)

type command struct {
	kind commandKind
	id   string
}

// parseCommand reads one serial line.
//
//	<id> | inc <id> | + <id>   increment
//	reset                      reset all counts
//	show                       print the display
//	help                       list cell ids
//
// Keywords are case-insensitive. A bare word that is not a keyword is taken as
// a cell id, kept as typed; the roster decides whether it exists.
func parseCommand(line string) command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdNone}
	}
	keyword := strings.ToLower(fields[0])
	switch len(fields) {
	case 1:
		switch keyword {
		case "reset":
			return command{kind: cmdReset}
		case "show":
			return command{kind: cmdShow}
		case "help", "?":
			return command{kind: cmdHelp}
		case "inc", "+":
			return command{kind: cmdInvalid}
		}
		return command{kind: cmdIncrement, id: fields[0]}
	case 2:
		switch keyword {
		case "inc", "+":
			return command{kind: cmdIncrement, id: fields[1]}
		}
	}
	return command{kind: cmdInvalid}
}
