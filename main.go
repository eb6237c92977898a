package main

import "github.com/jmehdipour/sms-forwarder/cmd"

func main() {
	cmd.Execute()
}
