package repl

import (
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

type choice int

const (
	choiceUnknown choice = iota
	choiceSave
	choiceEdit
	choiceIgnore
	choiceSkip
	choiceQuit
)

func (r *REPL) readInput() (string, error) {
	line, err := r.rl.Readline()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func parseChoice(input string) choice {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "s", "save", "y", "yes":
		return choiceSave
	case "e", "edit":
		return choiceEdit
	case "i", "ignore":
		return choiceIgnore
	case "k", "skip", "":
		return choiceSkip
	case "q", "quit", "/quit", "exit":
		return choiceQuit
	default:
		return choiceUnknown
	}
}

func setupReadline() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "> ",
		HistoryFile:         "",
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})

	return rl, err
}

func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt)
}
