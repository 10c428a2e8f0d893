package main

import "github.com/ValentinKolb/firestarter/cmd"

func main() {
	cmd.Execute()
}
