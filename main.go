package main

import "github.com/lepinkainen/gary/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
