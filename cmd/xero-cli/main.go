package main

import "xeroreports/cmd/xero-cli/cmd"

func main() {
	cmd.Execute()
}
