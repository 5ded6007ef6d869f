package hertzx

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/cors"
	"github.com/xiehqing/streamcore/models"
	"github.com/xiehqing/streamcore/pkg/hertzx/middleware"
	"github.com/xiehqing/streamcore/pkg/resp"
)

type WebConfig struct {
	Host               string `json:"host" yaml:"host"` // 当前主机地址，默认 0.0.0.0
	Port               int    `json:"port" yaml:"port"`
	MaxRequestBodySize int    `json:"maxRequestBodySize" yaml:"max-request-body-size" mapstructure:"max-request-body-size"`
	ReadTimeout        int    `json:"readTimeout" yaml:"read-timeout" mapstructure:"read-timeout"`    // 读取超时时间
	WriteTimeout       int    `json:"writeTimeout" yaml:"write-timeout" mapstructure:"write-timeout"` // 写入超时时间，流式接口需要较长
	IdleTimeout        int    `json:"idleTimeout" yaml:"idle-timeout" mapstructure:"idle-timeout"`
	ShutdownTimeout    int    `json:"shutdownTimeout" yaml:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

func (cfg *WebConfig) Prepare() {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = 1024 * 1024 * 20
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * 60 * 1000
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 3 * 60 * 1000
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 24 * 60 * 60 * 1000
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * 1000
	}
}

func WebEngine(cfg WebConfig) *server.Hertz {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	opts := []config.Option{
		server.WithHostPorts(addr),
		server.WithMaxRequestBodySize(cfg.MaxRequestBodySize),
		server.WithReadTimeout(time.Duration(cfg.ReadTimeout) * time.Millisecond),
		server.WithWriteTimeout(time.Duration(cfg.WriteTimeout) * time.Millisecond),
		server.WithIdleTimeout(time.Duration(cfg.IdleTimeout) * time.Millisecond),
		server.WithExitWaitTime(time.Duration(cfg.ShutdownTimeout) * time.Millisecond),
	}
	hertz := server.Default(opts...)

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"*"}

	hertz.Use(middleware.SetLogIdMW())
	hertz.Use(cors.New(corsCfg))
	hertz.Use(middleware.AccessLogMW())
	return hertz
}

// ParamString 获取参数
func ParamString(c *app.RequestContext, paramName string) (string, error) {
	paramContent := c.Param(paramName)
	if paramContent == "" {
		return "", fmt.Errorf("参数 %s 不能为空", paramName)
	}
	return paramContent, nil
}

// QueryInt 获取int参数
func QueryInt(c *app.RequestContext, paramName string) (int, error) {
	pv := c.DefaultQuery(paramName, "")
	var v int
	if pv == "" {
		return v, nil
	}
	return strconv.Atoi(pv)
}

// ParsePageable 解析分页参数
func ParsePageable(c *app.RequestContext) (models.Pageable, error) {
	pageNo, err := QueryInt(c, "pageNo")
	pageable := models.Pageable{}
	if err != nil {
		return pageable, fmt.Errorf("参数 pageNo 不合法")
	}
	pageSize, err := QueryInt(c, "pageSize")
	if err != nil {
		return pageable, fmt.Errorf("参数 pageSize 不合法")
	}
	sortField := c.DefaultQuery("sortField", "updated_at")
	if sortField == "" {
		sortField = "updated_at"
	}
	sortOrder := c.DefaultQuery("sortOrder", "desc")
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}
	return models.PageRequest(pageNo, pageSize, sortField, sortOrder), nil
}

// Bad 返回错误信息
func Bad(c *app.RequestContext, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, resp.Response{
		Code:    resp.BadRequest,
		Message: message,
	})
}

// Badf 返回错误信息
func Badf(c *app.RequestContext, format string, args ...interface{}) {
	Bad(c, fmt.Sprintf(format, args...))
}

// OK 返回成功信息
func OK(c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Data(c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, resp.Success(data))
}

func Msg(c *app.RequestContext, data string) {
	c.JSON(http.StatusOK, resp.Message(data))
}

func Error(c *app.RequestContext, message string) {
	c.JSON(http.StatusOK, resp.Error(resp.Failed, message))
}

func Errorf(c *app.RequestContext, format string, args ...interface{}) {
	Error(c, fmt.Sprintf(format, args...))
}

func Abort(c *app.RequestContext, code int, message string) {
	c.AbortWithStatusJSON(code, resp.Message(message))
}

// PaymentRequired 余额不足，区别于通用错误
func PaymentRequired(c *app.RequestContext, message string) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, resp.Response{
		Code:    resp.PaymentRequired,
		Message: message,
	})
}
