package main

import "github.com/wagnerlima/memory-cloud/memory-store/internal/cli"

func main() {
	cli.Execute()
}
