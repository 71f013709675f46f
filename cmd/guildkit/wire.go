//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the bot components using Google Wire.
func BuildApp(ctx context.Context, f flags) (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideHub,
		provideStorage,
		provideStats,
		provideWebhooks,
		provideSession,
		provideKit,
		provideRouter,
		provideCooldown,
		provideMessageXP,
		provideHandler,
		provideServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
