package main

import "github.com/fakeyudi/auditrail/cmd"

func main() {
	cmd.Execute()
}
