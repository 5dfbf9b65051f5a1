package main

import "matchmaker/cmd"

func main() {
	cmd.Execute()
}
