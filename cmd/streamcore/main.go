package main

import (
	"flag"

	"github.com/xiehqing/streamcore/chat/billing"
	"github.com/xiehqing/streamcore/chat/continuation"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/provider"
	"github.com/xiehqing/streamcore/chat/reconcile"
	"github.com/xiehqing/streamcore/chat/service"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/chat/stream"
	"github.com/xiehqing/streamcore/pkg/cfg"
	"github.com/xiehqing/streamcore/pkg/hertzx"
	"github.com/xiehqing/streamcore/pkg/jwtx"
	"github.com/xiehqing/streamcore/pkg/logs"
	"github.com/xiehqing/streamcore/pkg/ormx"
	"github.com/xiehqing/streamcore/pkg/redisx"
)

type Config struct {
	Web       hertzx.WebConfig     `json:"web" yaml:"web" mapstructure:"web"`
	Log       logs.LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	DB        ormx.DBConfig        `json:"db" yaml:"db" mapstructure:"db"`
	Redis     redisx.RedisConfig   `json:"redis" yaml:"redis" mapstructure:"redis"`
	Jwt       jwtx.Config          `json:"jwt" yaml:"jwt" mapstructure:"jwt"`
	Provider  provider.Config      `json:"provider" yaml:"provider" mapstructure:"provider"`
	Credit    billing.CreditConfig `json:"credit" yaml:"credit" mapstructure:"credit"`
	Stream    stream.Config        `json:"stream" yaml:"stream" mapstructure:"stream"`
	Reconcile reconcile.Config     `json:"reconcile" yaml:"reconcile" mapstructure:"reconcile"`
}

func main() {
	configDir := flag.String("config-dir", "conf", "配置文件目录")
	configFile := flag.String("config-file", "config", "配置文件名")
	flag.Parse()

	var config Config
	if err := cfg.LoadConfig(*configDir, *configFile, "yaml", &config); err != nil {
		logs.Fatalf("load config: %v", err)
	}
	if err := logs.InitLogger(config.Log, "streamcore.log"); err != nil {
		logs.Fatalf("init logger: %v", err)
	}

	gdb, err := ormx.NewDBClient(config.DB)
	if err != nil {
		logs.Fatalf("connect database: %v", err)
	}
	if err := db.Init(gdb); err != nil {
		logs.Fatalf("migrate database: %v", err)
	}
	rdb, err := redisx.NewRedis(config.Redis)
	if err != nil {
		logs.Fatalf("connect redis: %v", err)
	}

	queries := db.New(gdb)
	sessions := session.NewService(queries)
	ledger := billing.NewLedger(gdb, rdb)
	factory := provider.NewHTTPFactory(config.Provider)
	mux := stream.NewMux(config.Stream, sessions, ledger, config.Credit, factory, queries)
	continuations := continuation.NewService(sessions, ledger, config.Credit, factory, queries)

	sweeper := reconcile.NewSweeper(config.Reconcile, sessions, queries)
	if err := sweeper.Start(); err != nil {
		logs.Fatalf("start reconcile sweeper: %v", err)
	}
	defer sweeper.Stop()

	engine := hertzx.WebEngine(config.Web)
	handler := service.NewHandler(mux, sessions, continuations, ledger, queries, config.Jwt)
	handler.RegisterRoutes(engine)

	logs.Infof("streamcore listening on %s:%d", config.Web.Host, config.Web.Port)
	engine.Spin()
}
