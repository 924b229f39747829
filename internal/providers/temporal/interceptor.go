package temporal

import (
	"context"
	"strconv"

	"github.com/getsentry/sentry-go"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"
)

// NewSentryActivityInterceptor creates a worker interceptor that gives each activity
// execution its own Sentry hub tagged with the activity identity
func NewSentryActivityInterceptor() interceptor.WorkerInterceptor {
	return &SentryActivityInterceptor{}
}

// SentryActivityInterceptor scopes Sentry reporting to a single activity execution
type SentryActivityInterceptor struct {
	interceptor.WorkerInterceptorBase
}

// InterceptActivity wraps activity execution
func (s *SentryActivityInterceptor) InterceptActivity(ctx context.Context, next interceptor.ActivityInboundInterceptor) interceptor.ActivityInboundInterceptor {
	return &sentryActivityInboundInterceptor{
		ActivityInboundInterceptorBase: interceptor.ActivityInboundInterceptorBase{
			Next: next,
		},
	}
}

type sentryActivityInboundInterceptor struct {
	interceptor.ActivityInboundInterceptorBase
}

// ExecuteActivity runs the activity with a cloned hub on its context so that
// logger.ErrorCtx reports carry the activity tags
func (s *sentryActivityInboundInterceptor) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (interface{}, error) {
	hub := sentry.CurrentHub().Clone()

	info := activity.GetInfo(ctx)
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(ActivityTags(info))
	})

	return s.Next.ExecuteActivity(sentry.SetHubOnContext(ctx, hub), in)
}

// ActivityTags returns the Sentry tags identifying an activity execution
func ActivityTags(info activity.Info) map[string]string {
	workflowType := "unknown"
	if info.WorkflowType != nil {
		workflowType = info.WorkflowType.Name
	}
	return map[string]string{
		"activity_type": info.ActivityType.Name,
		"workflow_type": workflowType,
		"workflow_id":   info.WorkflowExecution.ID,
		"run_id":        info.WorkflowExecution.RunID,
		"task_queue":    info.TaskQueue,
		"attempt":       strconv.Itoa(int(info.Attempt)),
	}
}
