package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
)

type lastLine struct{}

func (lastLine) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("re: "+input[len(input)-1].Content, nil), nil
}

func (m lastLine) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, input, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (lastLine) BindTools([]*schema.ToolInfo) error { return nil }

func newSession(t *testing.T) *chatService.Controller {
	t.Helper()
	conn := assistant.ConnectorFunc(func(context.Context) (model.ChatModel, error) {
		return lastLine{}, nil
	})
	session := chatService.NewController("cli", conn, locale.NewMemoryStore(locale.Seed()), chatService.ControllerOptions{})
	t.Cleanup(session.Close)
	return session
}

func TestOneShotPrintsGreetingAndReply(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, oneShot(context.Background(), newSession(t), "rates?", &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Subha AI")
	assert.Equal(t, "bot> re: Please respond ONLY in English: rates?", lines[1])
}

func TestInteractiveCommands(t *testing.T) {
	in := strings.NewReader("hello\n/lang ta\n/lang fr\n/new\n/quit\n")
	var out bytes.Buffer

	require.NoError(t, interactive(context.Background(), newSession(t), in, &out))

	text := out.String()
	assert.Contains(t, text, "bot> re: Please respond ONLY in English: hello")
	assert.Contains(t, text, "language: ta")
	assert.Contains(t, text, "!! unsupported language")
	assert.Contains(t, text, "bot> புதிய உரையாடல். நான் எப்படி உதவ முடியும்?")
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--lang", "ta", "-m", "hi"}))

	lang, err := cmd.Flags().GetString("lang")
	require.NoError(t, err)
	assert.Equal(t, "ta", lang)
	msg, err := cmd.Flags().GetString("message")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg)
}
