package main

import "github.com/CosmoTheDev/forumrelay/cmd"

func main() {
	cmd.Execute()
}
