package model

import "strings"

// 表单字段名，和后端序列化字段保持一致
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldStatus      = "status"
	FieldDeadline    = "deadline"
)

// DraftFields 按表单顺序列出所有必填字段
var DraftFields = []string{FieldTitle, FieldDescription, FieldPriority, FieldStatus, FieldDeadline}

// Draft 新建任务表单的状态，字段都保留用户输入的原始文本
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	Deadline    string   `json:"deadline"`
}

// NewDraft 返回默认值：priority=low, status=yet-to-start，其余为空
func NewDraft() Draft {
	return Draft{
		Priority: PriorityLow,
		Status:   StatusYetToStart,
	}
}

// Set 按字段名更新，未知字段返回 false
func (d *Draft) Set(field, value string) bool {
	switch field {
	case FieldTitle:
		d.Title = value
	case FieldDescription:
		d.Description = value
	case FieldPriority:
		d.Priority = Priority(value)
	case FieldStatus:
		d.Status = Status(value)
	case FieldDeadline:
		d.Deadline = value
	default:
		return false
	}
	return true
}

// Missing 返回为空的必填字段。只检查是否填写，不做语义校验。
func (d Draft) Missing() []string {
	var missing []string
	values := map[string]string{
		FieldTitle:       d.Title,
		FieldDescription: d.Description,
		FieldPriority:    string(d.Priority),
		FieldStatus:      string(d.Status),
		FieldDeadline:    d.Deadline,
	}
	for _, f := range DraftFields {
		if strings.TrimSpace(values[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
