package view

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"taskmanager/internal/model"
)

const (
	ProductTitle   = "Task Manager"
	LoadingText    = "Loading..."
	NoTasksText    = "No tasks found. Create your first task!"
	AddTaskLabel   = "Add New Task"
	LogoutLabel    = "Logout"
	CreateLabel    = "Create Task"
	CancelLabel    = "Cancel"
	DeleteLabel    = "Delete Task"
	cardSeparator  = "----------------------------------------"
	formFieldWidth = 12
)

// RenderText 把快照渲染成终端文本。
// 加载中只输出加载提示；空列表只输出占位文案，不会和卡片同时出现。
func RenderText(w io.Writer, s Snapshot) error {
	bw := bufio.NewWriter(w)

	if s.Loading {
		fmt.Fprintln(bw, LoadingText)
		return bw.Flush()
	}

	header := ProductTitle
	if s.Username != "" {
		header += "  (" + s.Username + ")"
	}
	fmt.Fprintln(bw, header)
	fmt.Fprintf(bw, "[%s] [%s]\n", AddTaskLabel, LogoutLabel)

	if s.Error != "" {
		fmt.Fprintf(bw, "\n! %s\n", s.Error)
	}

	if s.FormOpen {
		renderForm(bw, s.Draft)
	}

	fmt.Fprintln(bw)
	if len(s.Tasks) == 0 {
		fmt.Fprintln(bw, NoTasksText)
		return bw.Flush()
	}

	for _, t := range s.Tasks {
		renderCard(bw, t, s.DateLayout)
	}
	return bw.Flush()
}

func renderForm(w io.Writer, d model.Draft) {
	fmt.Fprintln(w, "\n-- New Task --")
	field := func(label, value string) {
		fmt.Fprintf(w, "%-*s %s\n", formFieldWidth, label+":", value)
	}
	field("Title", d.Title)
	field("Description", d.Description)
	field("Priority", d.Priority.Label())
	field("Status", d.Status.Label())
	field("Deadline", d.Deadline)
	fmt.Fprintf(w, "[%s] [%s]\n", CreateLabel, CancelLabel)
}

func renderCard(w io.Writer, t model.Task, layout string) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	fmt.Fprintln(w, cardSeparator)
	fmt.Fprintf(w, "#%s  %s\n", t.ID, t.Title)
	for _, line := range strings.Split(t.Description, "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
	fmt.Fprintf(w, "    Priority: %s | Status: %s | Deadline: %s\n",
		t.Priority, t.Status, t.Deadline.Format(layout))
	fmt.Fprintf(w, "    [%s]\n", DeleteLabel)
}
