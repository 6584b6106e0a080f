// Package metrics records ingestion and dashboard counters. Components take a
// Recorder and default to NoopRecorder.
package metrics

type Recorder interface {
	// EventObserved counts one ingestion attempt; inserted is false for duplicates.
	EventObserved(kind string, inserted bool)
	RefreshFinished(trigger string, err error)
	ActiveDashboards(n int)
	SectionFailed(section string)
}

type NoopRecorder struct{}

func (NoopRecorder) EventObserved(string, bool)    {}
func (NoopRecorder) RefreshFinished(string, error) {}
func (NoopRecorder) ActiveDashboards(int)          {}
func (NoopRecorder) SectionFailed(string)          {}
