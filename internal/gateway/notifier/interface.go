package notifier

import "context"

// TextNotifier 是最小的文本推送接口，调用方无需依赖具体实现。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
