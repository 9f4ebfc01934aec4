package main

import "github.com/pulsemetrics/analytics-gateway/cmd"

func main() {
	cmd.Execute()
}
