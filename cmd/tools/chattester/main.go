package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/saifinance/subha-ai/backend/internal/config"
	"github.com/saifinance/subha-ai/backend/internal/logging"
	"github.com/saifinance/subha-ai/backend/internal/model/chat"
	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
)

type options struct {
	language string
	message  string
	verbose  bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "chattester",
		Short: "在终端里与助手对话，用于联调远端模型",
		Long: "chattester 使用与服务端相同的会话控制器连接助手。\n" +
			"指定 --message 时发送一条消息后退出，否则进入交互模式（/new 开始新对话，/lang <code> 切换语言，/quit 退出）。",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return execute(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.language, "lang", "", "回复语言 (en 或 ta)，默认使用配置")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "只发送这一条消息")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")
	return cmd
}

func execute(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	if !opts.verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	connector, err := assistant.NewConnector(cfg, logger)
	if err != nil {
		return err
	}

	lang := opts.language
	if lang == "" {
		lang = cfg.Assistant.DefaultLanguage
	}
	parsed, ok := locale.ParseLanguage(lang)
	if !ok {
		return fmt.Errorf("unsupported language %q", lang)
	}

	session := chatService.NewController("", connector, locale.NewMemoryStore(locale.Seed()), chatService.ControllerOptions{
		Language:       parsed,
		ConnectTimeout: cfg.Assistant.ConnectTimeout,
		ReplyTimeout:   cfg.Assistant.ReplyTimeout,
		Logger:         logger,
	})
	defer session.Close()

	if opts.message != "" {
		return oneShot(ctx, session, opts.message, out)
	}
	return interactive(ctx, session, in, out)
}

// printer writes transcript entries that have not been shown yet.
type printer struct {
	out  io.Writer
	seen map[string]struct{}
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: make(map[string]struct{})}
}

func (p *printer) flush(state chat.State) {
	for _, msg := range state.Transcript {
		if msg.IsPlaceholder {
			continue
		}
		if _, ok := p.seen[msg.ID]; ok {
			continue
		}
		p.seen[msg.ID] = struct{}{}
		if msg.Sender == chat.SenderUser {
			continue
		}
		fmt.Fprintf(p.out, "bot> %s\n", msg.Text)
	}
	if state.Error != "" {
		fmt.Fprintf(p.out, "!! %s\n", state.Error)
	}
}

func oneShot(ctx context.Context, session *chatService.Controller, message string, out io.Writer) error {
	p := newPrinter(out)
	if err := session.Connect(ctx); err != nil {
		p.flush(session.Snapshot())
		return err
	}
	p.flush(session.Snapshot())

	if outcome := session.Send(ctx, message); outcome != chatService.SendAccepted {
		return fmt.Errorf("message not sent: %s", outcome)
	}
	p.flush(session.Snapshot())
	return nil
}

func interactive(ctx context.Context, session *chatService.Controller, in io.Reader, out io.Writer) error {
	p := newPrinter(out)
	if err := session.Connect(ctx); err != nil {
		p.flush(session.Snapshot())
		return err
	}
	p.flush(session.Snapshot())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			if err := session.StartNewChat(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "/lang"):
			if err := session.SetLanguage(strings.TrimSpace(strings.TrimPrefix(line, "/lang"))); err != nil {
				fmt.Fprintf(out, "!! %v\n", err)
				continue
			}
			fmt.Fprintf(out, "language: %s\n", session.Snapshot().Language)
		default:
			if outcome := session.Send(ctx, line); outcome != chatService.SendAccepted {
				fmt.Fprintf(out, "!! message not sent: %s\n", outcome)
			}
		}
		p.flush(session.Snapshot())
	}
}
