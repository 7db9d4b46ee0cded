// issue-token 为指定用户名开通账户（已存在则复用）并签发访问令牌，用于本地调试与集成测试
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/database"
	"github.com/qs3c/creditflow_server/internal/pkg/jwt"
	"github.com/qs3c/creditflow_server/internal/pkg/logger"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/service"
)

var (
	username = flag.String("username", "", "Account username (required)")
	email    = flag.String("email", "", "Account email, used only when creating")
	hours    = flag.Int("hours", 0, "Token lifetime in hours, defaults to jwt.expire_hours")
)

func main() {
	flag.Parse()
	if *username == "" {
		flag.Usage()
		os.Exit(2)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fail("load config", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fail("init logger", err)
	}
	defer log.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		fail("connect database", err)
	}
	if err := database.Migrate(db); err != nil {
		fail("migrate database", err)
	}

	accounts := service.NewAccountService(repository.NewUserRepository(db), log)
	user, created, err := accounts.EnsureAccount(context.Background(), *username, *email)
	if err != nil {
		fail("ensure account", err)
	}

	expire := *hours
	if expire <= 0 {
		expire = cfg.JWT.ExpireHours
	}
	if expire <= 0 {
		expire = 24
	}

	token, err := jwt.GenerateToken(user.ID, cfg.JWT.Secret, expire)
	if err != nil {
		fail("generate token", err)
	}

	fmt.Fprintf(os.Stderr, "user_id=%d created=%v credits=%d tier=%s\n",
		user.ID, created, user.CreditsRemaining, user.SubscriptionTier)
	fmt.Println(token)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "failed to %s: %v\n", step, err)
	os.Exit(1)
}
