package main

import "remit-rails/internal/cli"

func main() {
	cli.Execute()
}
