package main

import "github.com/vitalsync/vitalsync/cmd"

func main() {
	cmd.Execute()
}
