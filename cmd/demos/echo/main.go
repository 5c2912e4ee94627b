// Copyright (c) 2020 PrimeType, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/primetype/organix/pkg/msg"
	"github.com/primetype/organix/pkg/service"
	"github.com/primetype/organix/pkg/system"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ./echo
//
// Starts an echo service plus a pinger that sends it a request once a second, then
// runs until SIGINT / SIGTERM. Demonstrates registration, dependency-ordered startup,
// request / reply messaging, and coordinated shutdown.

const (
	echoID   service.ID = "echo"
	pingerID service.ID = "pinger"
)

type echoHandler struct{}

func (h *echoHandler) OnStart(ctx *service.Context) error {
	logger := ctx.Logger()
	logger.Info().Msg("echo ready")
	return nil
}

func (h *echoHandler) OnMessage(ctx *service.Context, envelope *msg.Envelope) error {
	if envelope.ReplyExpected() {
		return envelope.Reply(envelope.Payload())
	}
	logger := ctx.Logger()
	logger.Info().Msgf("echo : %v", envelope.Payload())
	return nil
}

func (h *echoHandler) OnStop(ctx *service.Context, reason error) error {
	logger := ctx.Logger()
	logger.Info().Msg("echo stopped")
	return nil
}

// pinger sends the echo service a request once a second from OnStart's goroutine and
// quits itself if the echo service misbehaves
func pinger() service.Handler {
	return service.HandlerFuncs{
		Start: func(ctx *service.Context) error {
			echo, err := ctx.AddressOf(echoID)
			if err != nil {
				return err
			}
			go func() {
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				n := 0
				for {
					select {
					case <-ctx.StopTrigger():
						return
					case <-ticker.C:
						n++
						reply, err := echo.Request(context.Background(), fmt.Sprintf("ping #%d", n), 5*time.Second)
						if err != nil {
							ctx.Quit(err)
							return
						}
						logger := ctx.Logger()
						logger.Info().Msgf("reply : %v", reply)
					}
				}
			}()
			return nil
		},
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	registry := system.NewRegistry()
	registry.MustRegister(
		service.NewDescriptor(string(echoID), "1.0.0", service.Critical()),
		&echoHandler{},
	)
	registry.MustRegister(
		service.NewDescriptor(string(pingerID), "1.0.0",
			service.DependsOn(echoID),
			service.RestartWith(service.FixedRetries(3, time.Second)),
		),
		pinger(),
	)

	sys, err := registry.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build the system")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info().Msgf("received %v - shutting down", sig)
		sys.Shutdown(nil)
	}()

	if err := sys.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("system terminated abnormally")
	}
	log.Info().Msgf("shutdown report : %s", sys.ShutdownReport())
}
