package cli

import "go.uber.org/zap"

// navigator 记录视图请求的跳转。命令行没有页面可以跳，
// 跳回登录页就意味着需要重新登录。
type navigator struct {
	logger *zap.Logger
	path   string
}

func (n *navigator) Navigate(path string, replace bool) {
	n.logger.Debug("View navigated away", zap.String("path", path), zap.Bool("replace", replace))
	n.path = path
}

func (n *navigator) navigated() bool {
	return n.path != ""
}
