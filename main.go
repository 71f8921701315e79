package main

import "github.com/creditwise/credit-gateway/cmd"

func main() {
	cmd.Execute()
}
