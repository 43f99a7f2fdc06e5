package main

import "github.com/oshokin/shared-alarm/cmd/alarm-status/cmd"

func main() {
	cmd.Execute()
}
