package main

import "github.com/ValentinKolb/dotKV/cmd"

func main() {
	cmd.Execute()
}
