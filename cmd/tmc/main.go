package main

import (
	"errors"
	"os"
)

func main() {
	err := Execute()
	if err == nil {
		return
	}
	var pe *panicError
	if errors.As(err, &pe) {
		os.Exit(2)
	}
	os.Exit(1)
}
