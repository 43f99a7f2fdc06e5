package main

import "github.com/oshokin/shared-alarm/cmd/alarm-sender/cmd"

func main() {
	cmd.Execute()
}
