package main

import "github.com/huanfeng/entwine-cli/cmd"

func main() {
	cmd.Execute()
}
