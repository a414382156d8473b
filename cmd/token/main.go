/*
main.go - Development token issuer

PURPOSE:
  Prints a signed bearer token for local testing. Uses the same
  JWT_SECRET as the server (.env or environment).

EXAMPLES:
  ./token -sub=2 -role=manager
  ./token -sub=7 -role=worker -ttl=1h
*/
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/api"
	"github.com/warp/worktrack/config"
	"github.com/warp/worktrack/core"
)

func main() {
	sub := flag.Int64("sub", 0, "Employee id")
	role := flag.String("role", "worker", "worker, manager or admin")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}
	if *sub <= 0 {
		logrus.Fatal("-sub must be a positive employee id")
	}
	r, err := core.ParseRole(*role)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid role")
	}

	tok, err := api.IssueToken([]byte(cfg.JWTSecret), core.Actor{EmployeeID: core.EmployeeID(*sub), Role: r}, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to sign token")
	}
	fmt.Println(tok)
}
