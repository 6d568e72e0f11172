// cmd/treespace/main.go
package main

import (
	"treespace/internal/app"
	"treespace/internal/appshell"
)

func main() { appshell.Main(app.RunContext) }
