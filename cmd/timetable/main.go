package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "timetable: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "timetable"
	app.HelpName = "timetable"
	app.Usage = "generate weekly class timetables offline"
	app.UsageText = "timetable <command> [arguments...]"
	app.Version = version
	app.Commands = []cli.Command{
		{
			Name:        "generate",
			Aliases:     []string{"g"},
			Usage:       "schedule a course and write the timetable",
			Description: generateDescription,
			Flags:       generateFlags,
			Action:      generate,
		},
		{
			Name:    "requirements",
			Aliases: []string{"r"},
			Usage:   "print weekly sessions per subject priority",
			Action:  requirements,
		},
	}
	return app
}
