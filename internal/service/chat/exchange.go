package chat

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
)

// instructionTemplate wraps every user message with the reply language.
const instructionTemplate = "Please respond ONLY in {language}: {query}"

// newExchange compiles the chain used for one message exchange. The compiled
// runnable is the session's connection handle.
func newExchange(ctx context.Context, cm model.ChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(instructionTemplate),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(assistant.Guard(cm))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile exchange chain: %w", err)
	}
	return runnable, nil
}

func exchangeInput(instruction, query string) map[string]any {
	return map[string]any{
		"language": instruction,
		"query":    query,
	}
}
