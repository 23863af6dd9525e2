package view

import (
	"context"
	"strings"
	"time"

	contracts "taskmanager/contracts/mq"
	"taskmanager/internal/apiclient"
	"taskmanager/internal/model"
	"taskmanager/pkg/trace"
	"taskmanager/pkg/util"

	"go.uber.org/zap"
)

const (
	opLoad   = "load_tasks"
	opCreate = "create_task"
	opDelete = "delete_task"
	opLogout = "logout"
)

// Mount 首次展示页面时加载任务，同一个视图只会加载一次
func (v *View) Mount(ctx context.Context) Outcome {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return OutcomeSkipped
	}
	v.mounted = true
	v.mu.Unlock()

	return v.LoadTasks(ctx)
}

// LoadTasks 拉取任务列表并整体替换本地序列。
// 401 时跳转到登录页，其它失败显示通用错误。
func (v *View) LoadTasks(ctx context.Context) Outcome {
	ctx = trace.Ensure(ctx)
	log := v.log(ctx)

	tasks, err := v.api.ListTasks(ctx)

	v.mu.Lock()
	v.loading = false
	if err != nil {
		v.loadFailed = true
		v.tasks = []model.Task{}
		v.errMsg = MsgFetchFailed
		v.mu.Unlock()

		log.Error("Error fetching tasks",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		if apiclient.IsUnauthorized(err) {
			v.nav.Navigate(EntryPath, false)
			return v.record(opLoad, OutcomeRedirect)
		}
		return v.record(opLoad, OutcomeFailed)
	}

	v.loadFailed = false
	v.tasks = tasks
	v.mu.Unlock()

	log.Info("Tasks loaded", zap.Int("task_count", len(tasks)))
	return v.record(opLoad, OutcomeSuccess)
}

// CreateTask 提交当前草稿。
// 只检查必填字段是否填写；先取 CSRF token 再提交，201 时追加服务端返回的任务、
// 重置草稿并关闭表单。失败时表单保持打开，草稿不变。
func (v *View) CreateTask(ctx context.Context) Outcome {
	ctx = trace.Ensure(ctx)
	log := v.log(ctx)

	v.mu.Lock()
	v.errMsg = ""
	draft := v.draft
	if missing := draft.Missing(); len(missing) > 0 {
		v.errMsg = "Please fill in all required fields: " + strings.Join(missing, ", ")
		v.mu.Unlock()
		log.Debug("Task draft incomplete", zap.Strings("missing", missing))
		return v.record(opCreate, OutcomeInvalid)
	}
	v.mu.Unlock()

	task, err := v.submit(ctx, draft)
	if err != nil {
		v.mu.Lock()
		v.errMsg = apiclient.Detail(err, MsgCreateFailed)
		v.mu.Unlock()

		log.Error("Error creating task",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		return v.record(opCreate, OutcomeFailed)
	}

	v.mu.Lock()
	next := make([]model.Task, len(v.tasks), len(v.tasks)+1)
	copy(next, v.tasks)
	v.tasks = append(next, task)
	v.draft = model.NewDraft()
	v.formOpen = false
	v.mu.Unlock()

	log.Info("Task created", zap.String("task_id", task.ID.String()))
	v.publish(ctx, contracts.RoutingKeyTaskCreated, contracts.TaskCreatedPayload{
		TaskID:     task.ID.String(),
		Username:   v.session.Current().Username(),
		Title:      task.Title,
		Priority:   string(task.Priority),
		Status:     string(task.Status),
		Deadline:   task.Deadline.String(),
		OccurredAt: time.Now().UTC(),
	})
	return v.record(opCreate, OutcomeSuccess)
}

func (v *View) submit(ctx context.Context, draft model.Draft) (model.Task, error) {
	if _, err := v.api.FetchCSRFToken(ctx); err != nil {
		return model.Task{}, err
	}
	return v.api.CreateTask(ctx, draft)
}

// DeleteTask 远程删除成功后按 id 从本地序列移除；失败时列表不变
func (v *View) DeleteTask(ctx context.Context, id model.TaskID) Outcome {
	ctx = trace.Ensure(ctx)
	log := v.log(ctx).With(zap.String("task_id", id.String()))

	if err := v.api.DeleteTask(ctx, id); err != nil {
		v.mu.Lock()
		v.errMsg = apiclient.Detail(err, MsgDeleteFailed)
		v.mu.Unlock()

		log.Error("Error deleting task",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
		return v.record(opDelete, OutcomeFailed)
	}

	v.mu.Lock()
	next := make([]model.Task, 0, len(v.tasks))
	for _, t := range v.tasks {
		if t.ID != id {
			next = append(next, t)
		}
	}
	v.tasks = next
	v.mu.Unlock()

	log.Info("Task deleted")
	v.publish(ctx, contracts.RoutingKeyTaskDeleted, contracts.TaskDeletedPayload{
		TaskID:     id.String(),
		Username:   v.session.Current().Username(),
		OccurredAt: time.Now().UTC(),
	})
	return v.record(opDelete, OutcomeSuccess)
}

// Logout 通知服务端登出。无论请求成功与否，都会清除本地会话并跳转到登录页，
// 错误只写日志，不展示给用户。
func (v *View) Logout(ctx context.Context) Outcome {
	ctx = trace.Ensure(ctx)
	log := v.log(ctx)
	username := v.session.Current().Username()

	err := v.api.Logout(ctx)
	if err != nil {
		log.Warn("Logout error",
			zap.String("error_type", util.ClassifyError(err)),
			zap.Error(err),
		)
	}

	if endErr := v.session.End(ctx); endErr != nil {
		log.Warn("Failed to clear local session", zap.Error(endErr))
	}

	v.publish(ctx, contracts.RoutingKeySessionLogout, contracts.SessionLogoutPayload{
		Username:           username,
		ServerAcknowledged: err == nil,
		OccurredAt:         time.Now().UTC(),
	})

	v.nav.Navigate(EntryPath, true)
	return v.record(opLogout, OutcomeRedirect)
}
