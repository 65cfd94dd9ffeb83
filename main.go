// Command beacon runs multi-stage Claude workflows defined in YAML.
package main

import "beacon/internal/cli"

func main() {
	cli.Execute()
}
