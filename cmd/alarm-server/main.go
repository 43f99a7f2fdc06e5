package main

import "github.com/oshokin/shared-alarm/cmd/alarm-server/cmd"

func main() {
	cmd.Execute()
}
