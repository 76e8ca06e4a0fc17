package main

import "github.com/KaramelBytes/granola-mcp/cmd"

func main() {
	cmd.Execute()
}
