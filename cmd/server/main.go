package main // Entry point package

import (
	"log"

	"github.com/iliyamo/todoer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
