package main

import "github.com/wolfitem/ai-news-radar/cmd"

func main() {
	cmd.Execute()
}
