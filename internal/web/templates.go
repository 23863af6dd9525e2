package web

import (
	"html/template"

	"taskmanager/internal/model"
	"taskmanager/internal/view"
)

const (
	loginTemplate    = "login.html"
	registerTemplate = "register.html"
	tasksTemplate    = "tasks.html"
)

const layoutHTML = `{{define "head"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>{{end}}
{{define "foot"}}</body>
</html>{{end}}`

const loginHTML = `{{define "login.html"}}{{template "head" .}}
<div class="login-container">
  <h1>{{.Title}}</h1>
  {{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}
  {{if .Error}}<div class="error-message">{{.Error}}</div>{{end}}
  <form method="post" action="/login">
    <input type="text" name="username" placeholder="Username" value="{{.Username}}" required>
    <input type="password" name="password" placeholder="Password" required>
    <button type="submit">Login</button>
  </form>
  <p><a href="/register">Create an account</a></p>
</div>
{{template "foot" .}}{{end}}`

const registerHTML = `{{define "register.html"}}{{template "head" .}}
<div class="register-container">
  <h1>{{.Title}}</h1>
  {{if .Error}}<div class="error-message">{{.Error}}</div>{{end}}
  <form method="post" action="/register">
    <input type="text" name="username" placeholder="Username" value="{{.Username}}" required>
    <input type="text" name="first_name" placeholder="First Name" value="{{.FirstName}}" required>
    <input type="password" name="password" placeholder="Password" required>
    <input type="password" name="confirm_password" placeholder="Confirm Password" required>
    <button type="submit">Register</button>
  </form>
  <p><a href="/">Back to login</a></p>
</div>
{{template "foot" .}}{{end}}`

const tasksHTML = `{{define "tasks.html"}}{{template "head" .}}
{{with .Screen}}{{if .Loading}}<div>{{$.LoadingText}}</div>{{else}}
<div class="home-container">
  <div class="header">
    <h1>{{$.Title}}</h1>
    <div class="header-buttons">
      <form method="post" action="/tasks/form/open"><button type="submit">{{$.AddLabel}}</button></form>
      <form method="post" action="/logout"><button type="submit">{{$.LogoutLabel}}</button></form>
    </div>
  </div>
  {{if .Error}}<div class="error-message">{{.Error}}</div>{{end}}
  {{if .FormOpen}}
  <div class="add-task-form">
    <form method="post" action="/tasks">
      <input type="text" name="title" placeholder="Task Title" value="{{.Draft.Title}}" required>
      <textarea name="description" placeholder="Task Description" required>{{.Draft.Description}}</textarea>
      <select name="priority" required>
        {{range $.Priorities}}<option value="{{.}}"{{if eq . $.Screen.Draft.Priority}} selected{{end}}>{{.Label}}</option>{{end}}
      </select>
      <select name="status" required>
        {{range $.Statuses}}<option value="{{.}}"{{if eq . $.Screen.Draft.Status}} selected{{end}}>{{.Label}}</option>{{end}}
      </select>
      <input type="date" name="deadline" value="{{.Draft.Deadline}}" required>
      <div class="form-buttons">
        <button type="submit">{{$.CreateLabel}}</button>
        <button type="submit" formaction="/tasks/form/cancel" formnovalidate>{{$.CancelLabel}}</button>
      </div>
    </form>
  </div>
  {{end}}
  <div class="tasks-container">
    {{range .Tasks}}
    <div class="task-card">
      <h3>{{.Title}}</h3>
      <p>{{.Description}}</p>
      <div class="task-details">
        <span class="priority {{.Priority}}">Priority: {{.Priority}}</span>
        <span class="status {{.Status}}">Status: {{.Status}}</span>
        <span class="deadline">Deadline: {{.Deadline.Format $.Screen.DateLayout}}</span>
      </div>
      <form method="post" action="/tasks/{{.ID}}/delete"><button class="delete-button" type="submit">{{$.DeleteLabel}}</button></form>
    </div>
    {{else}}
    <div class="no-tasks"><p>{{$.NoTasksText}}</p></div>
    {{end}}
  </div>
</div>
{{end}}{{end}}
{{template "foot" .}}{{end}}`

func parseTemplates() *template.Template {
	t := template.New("web")
	template.Must(t.Parse(layoutHTML))
	template.Must(t.Parse(loginHTML))
	template.Must(t.Parse(registerHTML))
	template.Must(t.Parse(tasksHTML))
	return t
}

// loginPage 登录页数据
type loginPage struct {
	Title    string
	Notice   string
	Error    string
	Username string
}

// registerPage 注册页数据，密码不回填
type registerPage struct {
	Title     string
	Error     string
	Username  string
	FirstName string
}

// tasksPage 任务页数据
type tasksPage struct {
	Title       string
	Screen      view.Snapshot
	Priorities  []model.Priority
	Statuses    []model.Status
	LoadingText string
	NoTasksText string
	AddLabel    string
	LogoutLabel string
	CreateLabel string
	CancelLabel string
	DeleteLabel string
}

func newTasksPage(s view.Snapshot) tasksPage {
	if s.DateLayout == "" {
		s.DateLayout = view.DefaultDateLayout
	}
	return tasksPage{
		Title:       view.ProductTitle,
		Screen:      s,
		Priorities:  model.Priorities,
		Statuses:    model.Statuses,
		LoadingText: view.LoadingText,
		NoTasksText: view.NoTasksText,
		AddLabel:    view.AddTaskLabel,
		LogoutLabel: view.LogoutLabel,
		CreateLabel: view.CreateLabel,
		CancelLabel: view.CancelLabel,
		DeleteLabel: view.DeleteLabel,
	}
}
