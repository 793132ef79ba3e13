package main

import "github.com/Yates-Labs/reseek/cmd"

func main() {
	cmd.Execute()
}
