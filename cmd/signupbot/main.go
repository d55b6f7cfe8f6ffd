package main

import (
	"log"

	"github.com/m3rciful/signupbot/app/wiring"
	corecmd "github.com/m3rciful/signupbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar: "CONFIG_PATH",
		EnvFiles:     []string{".env"},
		Bootstrap:    wiring.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
