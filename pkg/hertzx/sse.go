package hertzx

import (
	"github.com/hertz-contrib/sse"
	"github.com/xiehqing/streamcore/pkg/util"
)

type SseSender struct {
	ss *sse.Stream
}

func NewSseSender(ss *sse.Stream) *SseSender {
	return &SseSender{ss: ss}
}

// Send 发送
func (s *SseSender) Send(data *sse.Event) error {
	return s.ss.Publish(data)
}

// BuildDataEvent 构建事件
func BuildDataEvent(data any) *sse.Event {
	if data == nil {
		return nil
	}
	if ev, ok := data.(*sse.Event); ok {
		return ev
	}
	if s, ok := data.(string); ok {
		return &sse.Event{
			Data: []byte(s),
		}
	}
	if b, ok := data.([]byte); ok {
		return &sse.Event{
			Data: b,
		}
	}
	m := util.ToJsonIgnoreError(data)
	return &sse.Event{
		Data: []byte(m),
	}
}
