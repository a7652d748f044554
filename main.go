package main

import "github.com/iksnae/rag-client/cmd"

func main() {
	cmd.Execute()
}
