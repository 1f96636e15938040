package main

import "github.com/mvp-joe/cobmap/internal/cli"

func main() {
	cli.Execute()
}
