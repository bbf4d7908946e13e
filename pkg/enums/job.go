package enums

// JobKind names the shape of a matching job.
type JobKind string

const (
	JobKindMatchRequest JobKind = "match-request"
	JobKindMatchAll     JobKind = "match-all"
)

var jobKinds = newSet("job kind", JobKindMatchRequest, JobKindMatchAll)

func (k JobKind) IsValid() bool { return jobKinds.has(k) }

func ParseJobKind(value string) (JobKind, error) { return jobKinds.parse(value) }

// JobState is the lifecycle of a dispatched job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}
