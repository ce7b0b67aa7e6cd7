package main

import "github.com/quayside/storefront/cmd"

func main() {
	cmd.Execute()
}
