package main

import "github.com/dalemusser/paydesk/internal/deskctl"

func main() {
	deskctl.Execute()
}
