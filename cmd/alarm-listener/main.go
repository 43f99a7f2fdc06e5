package main

import "github.com/oshokin/shared-alarm/cmd/alarm-listener/cmd"

func main() {
	cmd.Execute()
}
