// aurora routes transcribed voice commands through confidence-gated
// authorization before anything whitelisted is executed.
package main

import "github.com/auroralab/aurora/internal/cli"

func main() {
	cli.Execute()
}
