// Package solverexec provides the subprocess-invocation helpers shared by
// the lattice oracle adapters (internal/lattice) and the equilibrium
// solver bridge (internal/equilibrium): binary discovery, version checks,
// deadline-aware execution, and debug-input preservation.
package solverexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	tbnerrors "tbnexplorer2/internal/errors"
)

// Tool describes one external solver binary this module knows how to probe.
type Tool struct {
	Name        string
	Binary      string
	VersionArgs []string
	MinVersion  string
}

// IsAvailable reports whether the tool's binary is on PATH and, when
// VersionArgs is set, meets MinVersion.
func IsAvailable(ctx context.Context, tool Tool) (bool, string) {
	if _, err := exec.LookPath(tool.Binary); err != nil {
		return false, ""
	}
	if len(tool.VersionArgs) == 0 {
		return true, ""
	}

	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(versionCtx, tool.Binary, tool.VersionArgs...).Output()
	if err != nil {
		return true, "" // binary found but version probe failed; treat as available
	}
	version := parseVersion(string(out))
	if tool.MinVersion != "" && !versionAtLeast(version, tool.MinVersion) {
		return false, version
	}
	return true, version
}

// Run executes the tool with args under the given deadline, returning
// combined stdout+stderr. A binary missing from PATH yields MissingSolver,
// deadline expiry yields LatticeSolverTimeout, and any other failure yields
// LatticeSolverError carrying the tail of the output; each TBNError is
// tagged with component.
func Run(ctx context.Context, component string, binary string, args []string, deadline time.Duration) ([]byte, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, tbnerrors.Wrap(tbnerrors.MissingSolver, component,
			fmt.Sprintf("binary %q not found on PATH", binary), err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return out, tbnerrors.Wrap(tbnerrors.LatticeSolverTimeout, component,
				fmt.Sprintf("%s exceeded its deadline", binary), err)
		}
		excerpt := out
		if len(excerpt) > 2000 {
			excerpt = excerpt[len(excerpt)-2000:]
		}
		return out, tbnerrors.Wrap(tbnerrors.LatticeSolverError, component,
			fmt.Sprintf("%s failed: %s", binary, string(excerpt)), err)
	}
	return out, nil
}

// DebugDir returns (creating if needed) a run-unique directory under
// solver-inputs/ for preserving a solver's raw input files, named with a
// uuid so concurrent runs never collide.
func DebugDir(baseName, context string) (string, error) {
	dir := "solver-inputs"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s-%s", baseName, context, uuid.NewString())
	full := filepath.Join(dir, name)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", err
	}
	return full, nil
}

var versionRe = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

func parseVersion(output string) string {
	m := versionRe.FindStringSubmatch(output)
	if len(m) >= 2 {
		return m[1]
	}
	return strings.TrimSpace(output)
}

func versionAtLeast(version, minVersion string) bool {
	v := parseVersionParts(version)
	m := parseVersionParts(minVersion)
	for i := 0; i < 3; i++ {
		if v[i] > m[i] {
			return true
		}
		if v[i] < m[i] {
			return false
		}
	}
	return true
}

func parseVersionParts(v string) [3]int {
	var parts [3]int
	split := strings.Split(strings.TrimPrefix(v, "v"), ".")
	for i := 0; i < 3 && i < len(split); i++ {
		parts[i], _ = strconv.Atoi(split[i])
	}
	return parts
}
