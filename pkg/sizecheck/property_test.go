package sizecheck_test

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/patina/sizecheck/pkg/manifest"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

func testParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	return parameters
}

// Any non-empty identifier checked before boot is refused without a write.
func Test_CheckSize_NotReadyNeverWrites(t *testing.T) {
	properties := gopter.NewProperties(testParameters())

	properties.Property("not ready never writes the manifest", prop.ForAll(
		func(identifier string) bool {
			rig := mustNewTestRig(t, nil, false)

			report, err := rig.checker.CheckSize(context.Background(), identifier)
			return report == nil &&
				sizecheck.IsNotReady(err) &&
				len(rig.engine.Writes()) == 0
		},
		gen.AnyString().SuchThat(func(s string) bool { return strings.TrimSpace(s) != "" }),
	))

	properties.TestingRun(t)
}

// Scoped identifiers are measured under their unscoped directory name.
func Test_ModuleDir_StripsScope(t *testing.T) {
	properties := gopter.NewProperties(testParameters())

	properties.Property("scope prefix is stripped", prop.ForAll(
		func(scope, name string) bool {
			return manifest.ModuleDir("@"+scope+"/"+name) == name
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("measurement targets the stripped name", prop.ForAll(
		func(scope, name string) bool {
			rig := mustNewTestRig(t, nil, true)
			rig.respond("added 1 package", "4.0K")

			report, err := rig.checker.CheckSize(context.Background(), "@"+scope+"/"+name)
			if err != nil {
				return false
			}
			args := report.Size.Command
			return args[len(args)-1] == "node_modules/"+name
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

// A second check fully replaces the manifest and report of the first.
func Test_CheckSize_SequentialChecksOverwrite(t *testing.T) {
	properties := gopter.NewProperties(testParameters())

	properties.Property("only the latest identifier survives", prop.ForAll(
		func(first, second string) bool {
			rig := mustNewTestRig(t, nil, true)
			rig.respond("added 1 package", "4.0K")

			if _, err := rig.checker.CheckSize(context.Background(), first); err != nil {
				return false
			}
			report, err := rig.checker.CheckSize(context.Background(), second)
			if err != nil {
				return false
			}

			data, _ := rig.engine.File("/app/package.json")
			mf, err := manifest.Parse(data)
			if err != nil {
				return false
			}
			name, constraint, ok := mf.Dependency()

			return ok && name == second && constraint == manifest.Latest &&
				len(mf.Dependencies) == 1 &&
				strings.HasPrefix(report.Text, "Installing "+second+"...\n") &&
				rig.checker.Snapshot().Report == report.Text
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
