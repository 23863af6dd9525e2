package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	pkgconfig "taskmanager/pkg/config"

	"github.com/spf13/cobra"
)

// errNotLoggedIn 会话缺失或已被服务端拒绝
var errNotLoggedIn = errors.New("not logged in, run `taskctl login` first")

type rootOptions struct {
	configDir string
	env       string
}

// NewRootCommand 构建 taskctl 命令树
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "A CLI client for the task manager web application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", pkgconfig.GetEnv("CONFIG_DIR", "config"), "Directory holding base.yaml, <env>.yaml and secrets.env")
	root.PersistentFlags().StringVar(&opts.env, "env", pkgconfig.GetConfigEnv(), "Config environment, could be passed as environment variable `CONFIG_ENV`")

	root.AddCommand(
		newTasksCommand(opts),
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newLogoutCommand(opts),
		newServeCommand(opts),
		newEventsCommand(opts),
	)
	return root
}

// Execute 运行根命令，出错时以非零状态退出
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp 为一次命令执行准备依赖，结束后保存会话并释放资源
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	return fn(ctx, a, cmd.OutOrStdout())
}
