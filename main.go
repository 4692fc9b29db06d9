package main

import "github.com/eduzayn/educhat/cmd"

func main() {
	cmd.Execute()
}
