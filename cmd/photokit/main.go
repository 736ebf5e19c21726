package main

import (
	"github.com/bstardust/photokit/pkg/cli"
)

func main() {
	cli.Execute()
}
