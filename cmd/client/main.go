package main

import "clubsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
