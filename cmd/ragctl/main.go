package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		os.Exit(1)
	}
}
