package main

import "cmdwh/cmd"

func main() {
	cmd.Execute()
}
