package main

import "github.com/talentops/skillgate/internal/cli"

func main() {
	cli.Execute()
}
