package pipeline

// StepInfo is display metadata for a remote pipeline step. The runtime is
// free to report steps we have never heard of; unknown IDs fall back to the
// raw ID.
type StepInfo struct {
	ID    string
	Label string
	Order int
}

// knownSteps maps the step IDs the runtime currently reports to friendly
// labels. Ordering is used when summarizing a finished run.
var knownSteps = map[string]StepInfo{
	"plan": {
		ID:    "plan",
		Label: "Planning project structure",
		Order: 1,
	},
	"scaffoldProject": {
		ID:    "scaffoldProject",
		Label: "Scaffolding project files",
		Order: 2,
	},
	"review": {
		ID:    "review",
		Label: "Reviewing generated code",
		Order: 3,
	},
	"packageFiles": {
		ID:    "packageFiles",
		Label: "Packaging output",
		Order: 4,
	},
}

// DescribeStep returns display metadata for a step ID, falling back to the
// ID itself for steps we do not recognize.
func DescribeStep(stepID string) StepInfo {
	if info, ok := knownSteps[stepID]; ok {
		return info
	}
	return StepInfo{ID: stepID, Label: stepID, Order: 100}
}
