package main

import "github.com/technosupport/protect-dl/internal/cli"

func main() {
	cli.Execute()
}
