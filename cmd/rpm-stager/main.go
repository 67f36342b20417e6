package main

import "github.com/oshokin/rpm-stager/cmd/rpm-stager/cmd"

func main() {
	cmd.Execute()
}
