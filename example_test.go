package statum_test

import (
	"fmt"
	"strings"

	statum "github.com/stateforward/go-statum"
)

func ExampleMachine() {
	board := &board{}
	machine := statum.New(board, &ledOn{})
	if err := machine.Init(); err != nil {
		fmt.Println(err)
		return
	}
	if err := machine.Handle(statum.NewEvent("tick")); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(strings.Join(board.trace, "\n"))
	// Output:
	// entry(Blinking)
	// entry(LedOn)
	// exit(LedOn)
	// entry(LedOff)
}
