package ratelimit

import "go.uber.org/fx"

var Module = fx.Module("fee.ratelimit",
	fx.Provide(NewClassLock),
	fx.Provide(NewWriteLimiter),
)
