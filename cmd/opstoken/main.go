// Command opstoken 为运维人员签发访问 /api/v1/ops 的令牌。
package main

import (
	"flag"
	"fmt"
	"os"

	"tikitaka-go/internal/config"
	"tikitaka-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	operator := flag.String("operator", "", "令牌持有人")
	flag.Parse()

	if *operator == "" {
		fmt.Fprintln(os.Stderr, "必须通过 -operator 指定令牌持有人")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ShareTokenTTLHours, cfg.JWT.OpsTokenExpireHours)
	tok, err := jwtManager.GenerateOpsToken(*operator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发令牌失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
