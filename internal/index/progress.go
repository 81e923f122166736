package index

// Stage is a phase of a build reported through ProgressFunc.
type Stage string

const (
	// StageChunks covers embedding and storing the hierarchical chunks.
	StageChunks Stage = "chunks"
	// StageSummaries covers generating and storing summaries.
	StageSummaries Stage = "summaries"
)

// Progress is one build progress report. Total may grow within a stage
// when it cannot be known up front.
type Progress struct {
	Stage   Stage
	Current int
	Total   int
}

// ProgressFunc receives build progress. It may be called from several
// goroutines at once.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(stage Stage, current, total int) {
	if f != nil {
		f(Progress{Stage: stage, Current: current, Total: total})
	}
}
