package main

import "github.com/flowermarket/market-bot/cmd"

func main() {
	cmd.Execute()
}
