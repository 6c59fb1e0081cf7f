package main

import "github.com/superjcast/showwatch/cmd"

func main() {
	cmd.Execute()
}
