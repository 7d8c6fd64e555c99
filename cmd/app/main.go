package main

import "mijob/internal/cli"

func main() {
	cli.Execute()
}
