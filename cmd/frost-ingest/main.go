package main

import "github.com/i474232898/frost-ingest/internal/cli"

func main() {
	cli.Execute()
}
