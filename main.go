package main

import (
	"github.com/rmi-trainer/rmi/cmd"
)

func main() {
	cmd.Execute()
}
