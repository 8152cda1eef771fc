package main

import "github.com/ValentinKolb/dPoll/cmd"

func main() {
	cmd.Execute()
}
