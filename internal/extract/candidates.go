package extract

import (
	"os"
	"path/filepath"
)

// WorkspaceEnv overrides the candidate search roots when set.
const WorkspaceEnv = "SCAFFOLD_AGENT_WORKSPACE"

// DefaultCandidateRoots returns the ordered list of directories searched for
// generated project files when the structured lookup yields nothing. Order is
// priority: an explicit workspace override, conventional output directories
// under the working directory, then the per-user agent workspace.
func DefaultCandidateRoots() []string {
	var roots []string
	if ws := os.Getenv(WorkspaceEnv); ws != "" {
		roots = append(roots, ws)
	}
	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots,
			filepath.Join(cwd, "generated"),
			filepath.Join(cwd, "output"),
			filepath.Join(cwd, "workspace"),
		)
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".scaffold-agent", "workspace"))
	}
	return roots
}
