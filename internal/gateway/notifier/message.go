package notifier

import (
	"fmt"
	"strings"
	"time"
)

const maxMessageLen = 3800

// Field 是消息中的一行键值。
type Field struct {
	Key   string
	Value string
}

func F(key string, format string, args ...any) Field {
	return Field{Key: key, Value: fmt.Sprintf(format, args...)}
}

// Message 描述统一格式的 Telegram 推送：标题 + 代码块字段 + 时间。
type Message struct {
	Icon      string
	Title     string
	Fields    []Field
	Footer    string
	Timestamp time.Time
}

// Markdown 生成 Markdown 文本，超长时截断。
func (m Message) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString("*" + escape(header) + "*\n\n")
	}
	width := 0
	for _, f := range m.Fields {
		if len(f.Key) > width {
			width = len(f.Key)
		}
	}
	var rows []string
	for _, f := range m.Fields {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		rows = append(rows, fmt.Sprintf("%-*s  %s", width, f.Key, sanitize(v)))
	}
	if len(rows) > 0 {
		b.WriteString("```\n" + strings.Join(rows, "\n") + "\n```\n")
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escape(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("_" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST") + "_")
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen] + "..."
	}
	return body
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

// escape 处理 Telegram Markdown(v1) 的保留字符。
func escape(s string) string {
	r := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return r.Replace(s)
}
