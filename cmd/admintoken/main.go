// Command admintoken prints a signed admin token for the reload and diagnostics endpoints.
package main

import (
	"flag"
	"fmt"
	"nearby-guide/internal/auth"
	"nearby-guide/internal/config"
	"nearby-guide/internal/logger"
	"os"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	subject := flag.String("sub", "ops", "who the token is issued to")
	ttl := flag.Duration("ttl", cfg.AdminTokenTTL, "token lifetime")
	flag.Parse()

	logr := logger.New(cfg)
	defer logr.Sync()

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, auth.Issuer)
	if err != nil {
		logr.Fatal("failed to load signing keys", zap.Error(err))
	}

	token, exp, err := jwtMgr.IssueAdminToken(*subject, *ttl)
	if err != nil {
		logr.Fatal("failed to issue token", zap.Error(err))
	}

	logr.Info("admin token issued", zap.String("sub", *subject), zap.Time("expires_at", exp))
	fmt.Fprintln(os.Stdout, token)
}
