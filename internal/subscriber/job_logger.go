package subscriber

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/anwitac246/github-to-docs/internal/eventbus"
)

// RegisterJobLogger 订阅全部任务事件并输出结构化日志
func RegisterJobLogger(bus *eventbus.Bus) {
	types := []eventbus.JobEventType{
		eventbus.JobEventQueued,
		eventbus.JobEventStarted,
		eventbus.JobEventProgress,
		eventbus.JobEventCompleted,
		eventbus.JobEventFailed,
	}
	for _, t := range types {
		bus.Subscribe(t, logJobEvent)
	}
}

func logJobEvent(ctx context.Context, event eventbus.JobEvent) error {
	switch event.Type {
	case eventbus.JobEventFailed:
		klog.Warningf("job event: type=%s repoID=%d jobID=%d msg=%s",
			event.Type, event.RepositoryID, event.JobID, event.Message)
	case eventbus.JobEventProgress:
		klog.V(6).Infof("job event: type=%s repoID=%d jobID=%d progress=%d%%",
			event.Type, event.RepositoryID, event.JobID, event.Progress)
	default:
		klog.V(6).Infof("job event: type=%s repoID=%d jobID=%d",
			event.Type, event.RepositoryID, event.JobID)
	}
	return nil
}
