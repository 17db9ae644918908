package main

import "github.com/hlindberg/agentmq/cmd"

func main() {
	cmd.Execute()
}
