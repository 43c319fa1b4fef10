// devtoken 为本地联调签发访问令牌
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/C4erries/edumax/config"
	"github.com/C4erries/edumax/internal/model"
	"github.com/C4erries/edumax/pkg/jwt"
)

func main() {
	cfgPath := flag.String("config", "", "配置文件路径（默认按约定目录查找）")
	userID := flag.String("user", "", "用户 ID（UUID）")
	role := flag.String("role", model.RoleStaff, "角色: student / staff / admin")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "必须通过 -user 指定用户 ID")
		os.Exit(2)
	}
	switch *role {
	case model.RoleStudent, model.RoleStaff, model.RoleAdmin:
	default:
		fmt.Fprintf(os.Stderr, "未知角色: %s\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(*userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发令牌失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
