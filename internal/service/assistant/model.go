package assistant

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// guardedModel reports every model failure as an *Error so Reason never has
// to print the pipeline's node wrapper.
type guardedModel struct {
	model.ChatModel
}

// Guard wraps cm so its Generate and Stream failures surface as *Error.
// Errors that already are *Error pass through unchanged.
func Guard(cm model.ChatModel) model.ChatModel {
	if cm == nil {
		return nil
	}
	if g, ok := cm.(guardedModel); ok {
		return g
	}
	return guardedModel{ChatModel: cm}
}

func (g guardedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	msg, err := g.ChatModel.Generate(ctx, input, opts...)
	if err != nil {
		return nil, asError(err)
	}
	return msg, nil
}

func (g guardedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, err := g.ChatModel.Stream(ctx, input, opts...)
	if err != nil {
		return nil, asError(err)
	}
	return sr, nil
}

func asError(err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return newError(KindTransport, err, "assistant request failed")
}
