// Command studytrack tracks completed study units and moves their PDFs.
package main

import "github.com/tutu-network/studytrack/internal/cli"

func main() {
	cli.Execute()
}
