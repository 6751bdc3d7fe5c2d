package main

import (
	"fmt"

	"github.com/Xhand98/skillswap-realtime/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
