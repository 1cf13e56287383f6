package main

import "Cadenza/cmd"

func main() {
	cmd.Execute()
}
