package services_test

import (
	"sync/atomic"

	services "github.com/centraunit/goallin_lifecycle"
)

// funcService adapts plain functions to services.Service.
type funcService struct {
	boot     func(ctx *services.ServiceContext) error
	shutdown func(ctx *services.ServiceContext) error
	boots    atomic.Int32
}

func (f *funcService) OnBoot(ctx *services.ServiceContext) error {
	f.boots.Add(1)
	if f.boot == nil {
		return nil
	}
	return f.boot(ctx)
}

func (f *funcService) OnShutdown(ctx *services.ServiceContext) error {
	if f.shutdown == nil {
		return nil
	}
	return f.shutdown(ctx)
}

func descriptor(name, impl string, early bool, kv ...string) services.Descriptor {
	return services.Descriptor{
		Name:           name,
		Implementation: impl,
		EarlyInit:      early,
		Settings:       services.NewSettings(kv...),
	}
}
