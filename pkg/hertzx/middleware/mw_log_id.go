package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/xiehqing/streamcore/pkg/util"
)

func SetLogIdMW() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		logID := util.GenerateShortID()
		ctx = context.WithValue(ctx, "log-id", logID)

		c.Header("X-Log-ID", logID)
		c.Next(ctx)
	}
}
