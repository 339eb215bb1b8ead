// Command s3fs-mpctl operates the multipart upload planner against an
// S3-compatible bucket: computing part plans, running uploads end to end,
// and inspecting configuration.
package main

import (
	"os"

	"github.com/soitun/s3fs-fuse/cmd/s3fs-mpctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr(err)
		os.Exit(1)
	}
}
