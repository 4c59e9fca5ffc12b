package main

import (
	"os"

	"github.com/fdcscrape/scraper/cmd/fdcscrape/commands"
)

func main() {
	os.Exit(commands.Execute())
}
