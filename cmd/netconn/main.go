// Command netconn computes the connectivity of hierarchical schematic
// designs and checks it against connectivity rules.
package main

import "github.com/robert-at-pretension-io/netconn/cmd/netconn/cmd"

func main() {
	cmd.Execute()
}
