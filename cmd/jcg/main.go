// Package main is the entry point for the jcg CLI tool.
package main

import (
	"github.com/hargabyte/jacograph/internal/cmd"
)

func main() {
	cmd.Execute()
}
