// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/api"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen address (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	if c.String("log-level") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
		if host := c.String("host"); host != "" {
			svc.Config().Server.Host = host
		}
		if port := c.Int("port"); port > 0 {
			svc.Config().Server.Port = port
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return api.NewServer(svc).Run(ctx)
	})
}
