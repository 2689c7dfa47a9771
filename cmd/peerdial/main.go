package main

import "github.com/rudransh-shrivastava/peer-dial/internal/cli"

func main() {
	cli.Execute()
}
