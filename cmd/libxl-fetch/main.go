package main

import "github.com/SebastienElet/libxl-fetch/cmd/libxl-fetch/cmd"

func main() {
	cmd.Execute()
}
