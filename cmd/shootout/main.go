package main

import (
	"flag"

	"github.com/charleschow/penalty-lab/internal/process"
)

func main() {
	quiet := flag.Bool("quiet", false, "do not print kicks to the console")
	flag.Parse()

	process.Run(process.Options{Quiet: *quiet})
}
