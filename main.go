package main

import "github.com/yaoapp/relay/cmd"

func main() {
	cmd.Execute()
}
