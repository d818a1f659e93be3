package main

import "github.com/edgeflare/ragapi/cmd/ragapi"

func main() {
	ragapi.Main()
}
