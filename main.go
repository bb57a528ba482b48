package main

import "github.com/andresmejia3/aegis/cmd"

func main() {
	cmd.Execute()
}
