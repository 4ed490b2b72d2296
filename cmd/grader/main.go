// Package main is the entry point for the rubric grading service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/rubric-grader/cmd/grader/app"
)

func main() {
	app.NewApp().Run()
}
