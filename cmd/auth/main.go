package main

import "github.com/aussiebroadwan/sok/cmd/auth/cmd"

func main() {
	cmd.Execute()
}
