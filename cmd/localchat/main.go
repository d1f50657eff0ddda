package main

import "github.com/diogo/localchat/internal/commands"

func main() {
	commands.Execute()
}
