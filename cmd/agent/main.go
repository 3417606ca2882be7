package main

import "week_notification_agent/internal/cli"

func main() {
	cli.Main()
}
