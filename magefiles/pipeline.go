//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline runs the twinmatch stages with the configuration in
// twinmatch.yaml.
type Pipeline mg.Namespace

func twinmatch(args ...string) error {
	return sh.RunV("./"+binDir+"/"+binName, args...)
}

// Candidates searches candidate twins for the study population.
func (Pipeline) Candidates() error {
	mg.Deps(Build, Init)
	return twinmatch("candidates")
}

// Posts looks up the candidates' post counts.
func (Pipeline) Posts() error {
	mg.Deps(Build, Init)
	return twinmatch("posts")
}

// Match selects the twins and writes the reports.
func (Pipeline) Match() error {
	mg.Deps(Build, Init)
	return twinmatch("match")
}

// All runs the three stages in order.
func (Pipeline) All() {
	mg.SerialDeps(Pipeline.Candidates, Pipeline.Posts, Pipeline.Match)
}
