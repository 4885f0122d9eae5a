package main

import (
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	Execute()
}
