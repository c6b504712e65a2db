// Command songsmith writes songs through a draft, review, critic and
// preflight pipeline backed by a language model.
//
// Usage:
//
//	songsmith generate "a song about leaving a small town"
//	songsmith history
//	songsmith serve    # MCP tools over stdio
package main

import "songsmith/internal/cli"

func main() {
	cli.Execute()
}
