package main

import (
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/cli"
)

func main() {
	cli.Execute()
}
