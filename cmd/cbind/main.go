package main

import "github.com/mvp-joe/cbind/internal/cli"

func main() {
	cli.Execute()
}
