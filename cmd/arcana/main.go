package main

import "github.com/arcana-app/arcana/internal/cli"

func main() {
	cli.Main()
}
