package notify

import (
	"context"
	"fmt"
	"strings"
)

// Fanout 一个补丁批次提交后需要通知的用户集合与变更摘要
type Fanout struct {
	ScopeType  string
	ScopeID    string
	BatchID    string
	Version    int64
	OperatorID string
	UserIDs    []string
	Summaries  []string
}

// Dispatcher 通知分发边界，补丁引擎在事务提交后调用
// 返回错误不影响已提交的补丁，只记录日志
type Dispatcher interface {
	Dispatch(ctx context.Context, f Fanout) error
}

// Publisher 推送通道（默认实现为 Redis PUBLISH）
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// NopDispatcher 不做任何事的分发器
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Fanout) error { return nil }

// Title 站内信标题
func (f Fanout) Title() string {
	return "课表已更新"
}

// Content 站内信正文：版本号 + 每条变更摘要一行
func (f Fanout) Content() string {
	var b strings.Builder
	fmt.Fprintf(&b, "课表版本 %d，共 %d 项变更", f.Version, len(f.Summaries))
	for _, s := range f.Summaries {
		b.WriteString("\n- ")
		b.WriteString(s)
	}
	return b.String()
}
