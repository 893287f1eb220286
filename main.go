package main

import "oembedder/cmd"

func main() {
	cmd.Execute()
}
