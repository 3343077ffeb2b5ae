package main

import "github.com/mmynk/tabsplit/internal/cli"

func main() {
	cli.Execute()
}
