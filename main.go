package main

import "github.com/klytics/xlpipe/cmd"

func main() {
	cmd.Execute()
}
