package main

import "github.com/giygas/medicaments-alternatives/cmd"

func main() {
	cmd.Execute()
}
