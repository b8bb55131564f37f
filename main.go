/*
main.go

Copyright © 2025 Code Monkey Cybersecurity
Contact: git@cybermonkey.net.au

This file is part of honeydash.

This software is dual-licensed under the Do No Harm License
and the GNU Affero General Public License v3 (AGPL-3.0-or-later).
You may use, modify, and distribute it under the terms of either license.

See LICENSE.agpl and LICENSE.dnh for full details.
*/
package main

import (
	"context"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/cmd"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	logger.InitializeWithFallback()
	log := logger.L()

	if err := telemetry.Init("honeydash"); err != nil {
		log.Warn("Telemetry disabled", zap.Error(err))
	}

	code := cmd.Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := telemetry.Shutdown(ctx); err != nil {
		log.Debug("Telemetry flush failed", zap.Error(err))
	}
	cancel()

	os.Exit(code)
}
