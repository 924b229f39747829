package logger

import (
	"github.com/getsentry/sentry-go"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

// WorkflowInfo identifies a Temporal workflow execution in log entries and Sentry scopes
type WorkflowInfo struct {
	WorkflowType string
	WorkflowID   string
	RunID        string
	Namespace    string
	TaskQueue    string
}

func (i WorkflowInfo) fields() []zap.Field {
	return []zap.Field{
		zap.String("workflowType", i.WorkflowType),
		zap.String("workflowID", i.WorkflowID),
		zap.String("runID", i.RunID),
		zap.String("namespace", i.Namespace),
		zap.String("taskQueue", i.TaskQueue),
	}
}

// GetWorkflowInfo extracts workflow information from workflow.Context.
// Returns nil if workflow info is not available.
func GetWorkflowInfo(ctx workflow.Context) *WorkflowInfo {
	info := workflow.GetInfo(ctx)
	if info == nil {
		return nil
	}

	workflowTypeName := info.WorkflowType.Name
	if workflowTypeName == "" {
		workflowTypeName = "unknown"
	}

	return &WorkflowInfo{
		WorkflowType: workflowTypeName,
		WorkflowID:   info.WorkflowExecution.ID,
		RunID:        info.WorkflowExecution.RunID,
		Namespace:    info.Namespace,
		TaskQueue:    info.TaskQueueName,
	}
}

// WithWorkflowInfo returns a logger carrying the workflow identity.
// When Sentry is configured the identity is also set as tags on the current scope.
func WithWorkflowInfo(info WorkflowInfo) *zap.Logger {
	if sentryClient != nil {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("workflow_type", info.WorkflowType)
			scope.SetTag("workflow_id", info.WorkflowID)
			scope.SetTag("run_id", info.RunID)
		})
	}
	return log.With(info.fields()...)
}

// FromWorkflow returns a logger scoped to the workflow execution
func FromWorkflow(ctx workflow.Context, info *WorkflowInfo) *zap.Logger {
	if info == nil {
		info = GetWorkflowInfo(ctx)
	}
	if info == nil {
		return log
	}
	return WithWorkflowInfo(*info)
}

// InfoWorkflow logs an info message for a workflow
func InfoWorkflow(info WorkflowInfo, msg string, fields ...zap.Field) {
	WithWorkflowInfo(info).Info(msg, fields...)
}

// ErrorWorkflow logs an error for a workflow
func ErrorWorkflow(info WorkflowInfo, err error, fields ...zap.Field) {
	msg := "error occurred"
	if err != nil {
		msg = err.Error()
	}
	WithWorkflowInfo(info).Error(msg, fields...)
}

// WarnWorkflow logs a warning for a workflow
func WarnWorkflow(info WorkflowInfo, msg string, fields ...zap.Field) {
	WithWorkflowInfo(info).Warn(msg, fields...)
}

// DebugWorkflow logs a debug message for a workflow
func DebugWorkflow(info WorkflowInfo, msg string, fields ...zap.Field) {
	WithWorkflowInfo(info).Debug(msg, fields...)
}

// InfoWf logs an info message with workflow context. Nothing is logged while replaying history.
func InfoWf(ctx workflow.Context, msg string, fields ...zap.Field) {
	if workflow.IsReplaying(ctx) {
		return
	}
	if info := GetWorkflowInfo(ctx); info != nil {
		InfoWorkflow(*info, msg, fields...)
		return
	}
	Info(msg, fields...)
}

// ErrorWf logs an error with workflow context
func ErrorWf(ctx workflow.Context, err error, fields ...zap.Field) {
	if workflow.IsReplaying(ctx) {
		return
	}
	if info := GetWorkflowInfo(ctx); info != nil {
		ErrorWorkflow(*info, err, fields...)
		return
	}
	Error(err, fields...)
}

// WarnWf logs a warning with workflow context
func WarnWf(ctx workflow.Context, msg string, fields ...zap.Field) {
	if workflow.IsReplaying(ctx) {
		return
	}
	if info := GetWorkflowInfo(ctx); info != nil {
		WarnWorkflow(*info, msg, fields...)
		return
	}
	Warn(msg, fields...)
}

// DebugWf logs a debug message with workflow context
func DebugWf(ctx workflow.Context, msg string, fields ...zap.Field) {
	if workflow.IsReplaying(ctx) {
		return
	}
	if info := GetWorkflowInfo(ctx); info != nil {
		DebugWorkflow(*info, msg, fields...)
		return
	}
	Debug(msg, fields...)
}
